package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/analysis"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/config"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/journal"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/relevance"
)

// unknownLocation is recorded for issues logged without --location.
const unknownLocation = "unknown"

const defaultSearchLimit = 10

// commands is the full command table of the CLI.
func commands() []*cobra.Command {
	return []*cobra.Command{
		observeCmd(),
		insightCmd(),
		discoveryCmd(),
		issueCmd(),
		resolveCmd(),
		considerCmd(),
		patternCmd(),
		principleCmd(),
		antipatternCmd(),
		threadCmd("start", []string{"thread"}, "Begin an investigation thread", finding.ThreadActive),
		threadCmd("done", []string{"complete"}, "Complete an investigation thread", finding.ThreadCompleted),
		threadCmd("abandon", nil, "Abandon an investigation thread", finding.ThreadAbandoned),
		statusCmd(),
		searchCmd(),
		momentumCmd(),
		surfaceCmd(),
		suggestCmd(),
		patternsCmd(),
		reflectCmd(),
		compressCmd(),
		decompressCmd(),
		listCompressionsCmd(),
		archiveCmd(),
		deleteCmd(),
		healthCmd(),
		undoCmd(),
		initCmd(),
	}
}

// logCmd builds a command that appends one finding whose main text is the
// joined arguments.
func logCmd(use string, aliases []string, short string, write func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: aliases,
		Short:   short,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := write(j, strings.Join(args, " "), cmd.Flags())
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatAppend(res) })
		},
	}
}

func observeCmd() *cobra.Command {
	cmd := logCmd("o <what>", []string{"obs", "observation"}, "Log what you see",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			ctx, _ := flags.GetString("context")
			return j.Observe(text, ctx)
		})
	cmd.Flags().String("context", "", "where or when it was seen")
	return cmd
}

func insightCmd() *cobra.Command {
	cmd := logCmd("i <understanding>", []string{"insight"}, "Log what it means",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			evidence, _ := flags.GetString("evidence")
			return j.Insight(text, evidence)
		})
	cmd.Flags().String("evidence", "", "what supports the insight")
	return cmd
}

func discoveryCmd() *cobra.Command {
	cmd := logCmd("d <breakthrough>", []string{"discovery"}, "Log a breakthrough",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			impact, _ := flags.GetString("impact")
			solution, _ := flags.GetString("solution")
			return j.Discover(text, impact, solution)
		})
	cmd.Flags().String("impact", "", "what the breakthrough changes")
	cmd.Flags().String("solution", "", "the fix it leads to")
	return cmd
}

func issueCmd() *cobra.Command {
	cmd := logCmd("x <problem>", []string{"issue"}, "Log an issue or bug",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			location, _ := flags.GetString("location")
			severity, _ := flags.GetString("severity")
			return j.Issue(text, location, severity)
		})
	cmd.Flags().String("location", unknownLocation, "file or component where it happens")
	cmd.Flags().String("severity", "", "low, medium, high or critical (default medium)")
	return cmd
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "r <issue-id> <solution>",
		Aliases: []string{"resolve"},
		Short:   "Resolve an issue by id",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := j.Resolve(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatAppend(res) })
		},
	}
}

func considerCmd() *cobra.Command {
	cmd := logCmd("c <idea>", []string{"consider", "consideration"}, "Log an idea to evaluate later",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			ctx, _ := flags.GetString("context")
			return j.Consider(text, ctx)
		})
	cmd.Flags().String("context", "", "why it came up")
	return cmd
}

func patternCmd() *cobra.Command {
	cmd := logCmd("pattern <insight>", nil, "Log an architectural pattern",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			value, _ := flags.GetString("value")
			return j.Pattern(text, value)
		})
	cmd.Flags().String("value", "", "what the pattern buys")
	return cmd
}

func principleCmd() *cobra.Command {
	cmd := logCmd("principle <rule>", nil, "Log a design principle",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			rationale, _ := flags.GetString("rationale")
			return j.Principle(text, rationale)
		})
	cmd.Flags().String("rationale", "", "why the rule holds")
	return cmd
}

func antipatternCmd() *cobra.Command {
	cmd := logCmd("antipattern <problem>", nil, "Log something to avoid",
		func(j *journal.Journal, text string, flags *pflag.FlagSet) (journal.AppendResult, error) {
			why, _ := flags.GetString("why")
			return j.Antipattern(text, why)
		})
	cmd.Flags().String("why", "", "why it is bad")
	return cmd
}

func threadCmd(use string, aliases []string, short string, status finding.ThreadStatus) *cobra.Command {
	return logCmd(use+" <name>", aliases, short,
		func(j *journal.Journal, name string, _ *pflag.FlagSet) (journal.AppendResult, error) {
			return j.Thread(name, status)
		})
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"summary"},
		Short:   "Show the investigation overview",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			s, err := j.Summarize()
			if err != nil {
				return err
			}
			return emit(cmd, s, func() string { return formatSummary(s) })
		},
	}
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search <term>",
		Aliases: []string{"find", "query"},
		Short:   "Search the log",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("type")
			limit, _ := cmd.Flags().GetInt("limit")
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := j.Search(strings.Join(args, " "), finding.Kind(strings.ToLower(kind)), limit)
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatSearch(res) })
		},
	}
	cmd.Flags().String("type", "", "only records of this type")
	cmd.Flags().Int("limit", defaultSearchLimit, "most recent matches to show (0 = all)")
	return cmd
}

func momentumCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "momentum",
		Aliases: []string{"flow"},
		Short:   "Suggest next steps from what worked before",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			m, err := j.Momentum()
			if err != nil {
				return err
			}
			return emit(cmd, m, func() string { return formatMomentum(m) })
		},
	}
}

func surfaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "surface [context]",
		Aliases: []string{"smart", "brain"},
		Short:   "Surface past findings relevant to the current investigation",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := j.Surface(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatSurface(res) })
		},
	}
}

// suggestion is the combined output of "mnemos suggest".
type suggestion struct {
	Surface  relevance.SurfaceResult `json:"surface" yaml:"surface"`
	Momentum journal.MomentumReport  `json:"momentum" yaml:"momentum"`
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "suggest [context]",
		Aliases: []string{"?", "next"},
		Short:   "Relevant past findings and next-step suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			var s suggestion
			if s.Surface, err = j.Surface(strings.Join(args, " ")); err != nil {
				return err
			}
			if s.Momentum, err = j.Momentum(); err != nil {
				return err
			}
			return emit(cmd, s, func() string {
				return formatSurface(s.Surface) + "\n\n" + formatMomentum(s.Momentum)
			})
		},
	}
}

func patternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Show investigation flows, issue hotspots and successful runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			p, err := j.Patterns()
			if err != nil {
				return err
			}
			return emit(cmd, p, func() string { return formatPatterns(p) })
		},
	}
}

func reflectCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "reflect",
		Aliases: []string{"meta"},
		Short:   "Run a meta-reflection over recent findings",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			r, err := j.Reflect()
			if err != nil {
				return err
			}
			return emit(cmd, r, func() string { return formatReflection(r) })
		},
	}
}

func compressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress",
		Short: "Reversibly compress routine findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetInt("keep")
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := j.Compress(keep)
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatCompress(res) })
		},
	}
	cmd.Flags().Int("keep", 0, "recent findings to keep (0 = use config)")
	return cmd
}

func decompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompress <compression-id>",
		Short: "Restore the findings of a compression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid compression id %q", args[0])
			}
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := j.Decompress(id)
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatDecompress(res) })
		},
	}
}

func listCompressionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-compressions",
		Short: "List compressions that can be reversed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			list, err := j.ListArchives()
			if err != nil {
				return err
			}
			return emit(cmd, list, func() string { return formatArchives(list) })
		},
	}
}

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive [filter]",
		Short: "Move matching findings to a permanent archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, _ := cmd.Flags().GetInt("older-than-hours")
			filter := strings.Join(args, " ")
			if filter == "" && hours <= 0 {
				return fmt.Errorf("archive needs a filter or --older-than-hours")
			}
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := j.Archive(filter, hours)
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatArchive(res) })
		},
	}
	cmd.Flags().Int("older-than-hours", 0, "archive findings older than this many hours")
	return cmd
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [filter]",
		Short: "Delete matching findings (a backup is kept)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, _ := cmd.Flags().GetStringSlice("id")
			filter := strings.Join(args, " ")
			if filter == "" && len(ids) == 0 {
				return fmt.Errorf("delete needs a filter or --id")
			}
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			res, err := j.Delete(filter, ids)
			if err != nil {
				return err
			}
			return emit(cmd, res, func() string { return formatDelete(res) })
		},
	}
	cmd.Flags().StringSlice("id", nil, "ids to delete (repeatable or comma-separated)")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "health",
		Aliases: []string{"memory-health"},
		Short:   "Show memory pressure and the compression recommendation",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			rep, err := j.Health()
			if err != nil {
				return err
			}
			return emit(cmd, rep, func() string { return formatHealth(rep) })
		},
	}
}

// undoResult is the structured output of "mnemos undo".
type undoResult struct {
	Removed bool `json:"removed" yaml:"removed"`
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Remove the last finding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd)
			if err != nil {
				return err
			}
			ok, err := j.Undo()
			if err != nil {
				return err
			}
			return emit(cmd, undoResult{Removed: ok}, func() string { return formatUndo(ok) })
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold the store directory (mnemos.toml, .gitignore)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, _, err := resolveStore()
			if err != nil {
				return err
			}
			created, err := config.ScaffoldStore(loc.Dir)
			if err != nil {
				return err
			}
			if created == nil {
				created = []string{}
			}
			return emit(cmd, created, func() string { return formatScaffold(loc, created) })
		},
	}
}

// overview is the output of "mnemos" without arguments.
type overview struct {
	Summary  analysis.Summary       `json:"summary" yaml:"summary"`
	Momentum journal.MomentumReport `json:"momentum" yaml:"momentum"`
}

func showOverview(cmd *cobra.Command) error {
	j, err := openJournal(cmd)
	if err != nil {
		return err
	}
	var o overview
	if o.Summary, err = j.Summarize(); err != nil {
		return err
	}
	if o.Momentum, err = j.Momentum(); err != nil {
		return err
	}
	return emit(cmd, o, func() string { return formatOverview(o) })
}
