package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/casemigrate/pipeline"
	"github.com/ridoystarlord/casemigrate/runorder"
)

var (
	docsFormat string
	docsOutput string
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Document the run order of every domain",
	Long: `Generate documentation of the migration plans.

Supported formats:
  - markdown: every query, parser, load and relation with its --start position
  - mermaid: Mermaid flowchart of legacy query to staging to target tables

Examples:
  casemigrate docs                                 # Markdown to stdout
  casemigrate docs --format mermaid --output flow.md
`,
	Run: func(cmd *cobra.Command, args []string) {
		plans := runorder.Plans()

		var content string
		switch docsFormat {
		case "markdown":
			content = planMarkdown(plans)
		case "mermaid":
			content = planMermaid(plans)
		default:
			fmt.Printf("❌ Unsupported format: %s\n", docsFormat)
			fmt.Println("Supported formats: markdown, mermaid")
			os.Exit(1)
		}

		if docsOutput == "" {
			fmt.Print(content)
			return
		}
		if err := os.WriteFile(docsOutput, []byte(content), 0o644); err != nil {
			fmt.Printf("❌ Error writing %s: %v\n", docsOutput, err)
			os.Exit(1)
		}
		fmt.Printf("✅ Documentation saved to: %s\n", docsOutput)
	},
}

func init() {
	docsCmd.Flags().StringVarP(&docsFormat, "format", "f", "markdown", "Output format (markdown, mermaid)")
	docsCmd.Flags().StringVarP(&docsOutput, "output", "o", "", "Output file (default stdout)")
}

func planMarkdown(plans pipeline.Plans) string {
	var b strings.Builder
	b.WriteString("# Migration run order\n")

	for _, d := range pipeline.Domains {
		plan := plans[d]
		fmt.Fprintf(&b, "\n## %s\n", d)

		if len(plan.Queries) > 0 {
			b.WriteString("\n### Export\n\n| --start | Query | Staging tables |\n|---|---|---|\n")
			for i, q := range plan.Queries {
				fmt.Fprintf(&b, "| %s.%d | %s | %s |\n", d, i+1, q.Name, strings.Join(q.Staging, ", "))
			}
		}
		if len(plan.Parsers) > 0 {
			b.WriteString("\n### XML\n\n| Parser | Document | Writes |\n|---|---|---|\n")
			for _, p := range plan.Parsers {
				fmt.Fprintf(&b, "| %s | %s.%s | %s |\n", p.Name, p.Parent, p.Field, strings.Join(p.Targets, ", "))
			}
		}
		if len(plan.Loads) > 0 {
			b.WriteString("\n### Import\n\n| --start | Staging | Target |\n|---|---|---|\n")
			for i, st := range plan.Loads {
				fmt.Fprintf(&b, "| %s.%d | %s | %s |\n", d, i+1, st.Source, st.Target)
			}
		}
		if len(plan.Relations) > 0 {
			b.WriteString("\n### Relations\n\n| --start | Relation | Through table |\n|---|---|---|\n")
			for i, r := range plan.Relations {
				fmt.Fprintf(&b, "| %s-m2m.%d | %s | %s |\n", d, i+1, r.Name(), r.Through())
			}
		}
		for _, bf := range plan.Backfills {
			fmt.Fprintf(&b, "\n- backfill %s\n", bf.Name)
		}
		for _, t := range plan.Tasks {
			fmt.Fprintf(&b, "\n- tasks %s\n", t.Name)
		}
	}
	return b.String()
}

func planMermaid(plans pipeline.Plans) string {
	var b strings.Builder
	b.WriteString("```mermaid\nflowchart LR\n")

	seen := map[string]bool{}
	edge := func(from, to string) {
		key := from + "->" + to
		if seen[key] {
			return
		}
		seen[key] = true
		fmt.Fprintf(&b, "  %s --> %s\n", mermaidID(from), mermaidID(to))
	}

	for _, d := range pipeline.Domains {
		plan := plans[d]
		fmt.Fprintf(&b, "  %%%% %s\n", d)
		for _, q := range plan.Queries {
			for _, t := range q.Staging {
				edge("legacy:"+q.Name, t)
			}
		}
		for _, p := range plan.Parsers {
			for _, t := range p.Targets {
				edge(p.Parent, t)
			}
		}
		for _, st := range plan.Loads {
			edge(st.Source, st.Target)
		}
	}

	b.WriteString("```\n")
	return b.String()
}

func mermaidID(name string) string {
	id := strings.NewReplacer(" ", "_", ":", "_", "(", "", ")", "", "&", "and", "-", "_").Replace(name)
	return fmt.Sprintf("%s[\"%s\"]", id, name)
}
