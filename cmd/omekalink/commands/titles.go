package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/omekalink/display"
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/titlesync"
)

// TitlesCmd groups title maintenance commands
var TitlesCmd = &cobra.Command{
	Use:   "titles",
	Short: "Maintain item titles",
}

var titlesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy dcterms:title from another instance onto the primary instance",
	Long: `Enumerate items on the primary instance ([omeka]) and replace each item's
dcterms:title with the first title of the item with the same id on the instance
named by --from ([instances.NAME]).

Items missing on either instance, or without a title on the source, are skipped.

Examples:
  omekalink titles sync --from dev --source 256562`,
	Args: cobra.NoArgs,
	RunE: runTitlesSync,
}

func init() {
	titlesSyncCmd.Flags().String("from", "", "Instance to read titles from (an [instances.NAME] section)")
	titlesSyncCmd.Flags().Int64("source", 0, "Only process items of this item set on the primary instance (0 = all items)")
	TitlesCmd.AddCommand(titlesSyncCmd)
}

func runTitlesSync(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	if from == "" || from == "default" {
		return errors.WithHint(errors.New("--from must name a second instance"),
			"define [instances.dev] in am.toml and pass --from dev")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	source, err := newRemote(cfg, from, logger.ComponentLogger("omeka."+from))
	if err != nil {
		return err
	}
	target, err := newRemote(cfg, "", logger.ComponentLogger("omeka"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncer := titlesync.New(source, target, cfg.Omeka.GetPerPage(), logger.ComponentLogger("titles"))
	report, runErr := syncer.Run(ctx, sourceItemSet(cmd, 0))
	if report == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(out, report); err != nil {
			return err
		}
		return runErr
	}

	err = display.Table(out, []string{"processed", "updated", "skipped", "errors"}, [][]string{{
		strconv.Itoa(report.Processed),
		strconv.Itoa(report.Updated),
		strconv.Itoa(report.Skipped),
		strconv.Itoa(report.Errors),
	}})
	if err != nil {
		return err
	}
	if report.Interrupted {
		fmt.Fprintln(out, "Run interrupted")
	}
	return runErr
}
