package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gradeproxy/internal/subject"
	"github.com/abhisek/gradeproxy/internal/ui/theme"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects [key]",
	Short: "List subjects and their grading rubrics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		catalog := subject.Default()
		if cfg.CatalogPath != "" {
			if catalog, err = subject.Load(cfg.CatalogPath); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			s, ok := catalog.Resolve(args[0])
			if !ok {
				return fmt.Errorf("unknown subject %q (known: %s)", args[0], strings.Join(catalog.Keys(), ", "))
			}
			fmt.Fprintln(out, renderSubject(catalog, s, true))
			return nil
		}

		for _, s := range catalog.Subjects() {
			fmt.Fprintln(out, renderSubject(catalog, s, false))
		}
		return nil
	},
}

func renderSubject(catalog *subject.Catalog, s subject.Subject, detailed bool) string {
	lines := []string{
		theme.Title.Render(s.Key) + "  " + s.Name,
		theme.Field("Questions", s.QuestionType),
	}

	rubric := catalog.Rubric(s)
	if len(rubric) == 0 {
		lines = append(lines, theme.Field("Rubric", theme.Hint.Render("(none)")))
	} else {
		for i, cr := range rubric {
			label := ""
			if i == 0 {
				label = "Rubric"
			}
			lines = append(lines, theme.Field(label, fmt.Sprintf("%3d%%  %s", cr.Weight, cr.Name)))
		}
	}

	if detailed {
		lines = append(lines,
			"",
			theme.Field("Example", s.Example.Question),
			theme.Field("Answer", s.Example.Answer),
			"",
			theme.Hint.Render(s.Grading),
		)
	}
	return theme.Card.Render(strings.Join(lines, "\n"))
}
