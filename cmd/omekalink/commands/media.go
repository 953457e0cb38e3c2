package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/omekalink/display"
	"github.com/teranos/omekalink/logger"
	"github.com/teranos/omekalink/mediaref"
)

// MediaCmd groups media maintenance commands
var MediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Maintain item media",
}

var mediaDerefCmd = &cobra.Command{
	Use:   "deref",
	Short: "Copy media from referenced image items onto the items that reference them",
	Long: `For every item whose image property (media.image_property, default rcl:image)
references another item, recreate that item's media on the referencing item.

Media are re-ingested by URL: url media from o:original_url or o:source, uploaded
media from their original file URL, other ingesters from o:source.

Examples:
  omekalink media deref --source 3
  omekalink media deref --image-property schema:image --json`,
	Args: cobra.NoArgs,
	RunE: runMediaDeref,
}

func init() {
	mediaDerefCmd.Flags().Int64("source", 0, "Only process items of this item set (0 = whole repository)")
	mediaDerefCmd.Flags().String("image-property", "", "Property referencing the image item (default from media.image_property)")
	MediaCmd.AddCommand(mediaDerefCmd)
}

func runMediaDeref(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	property := cfg.Media.GetImageProperty()
	if cmd.Flags().Changed("image-property") {
		property, _ = cmd.Flags().GetString("image-property")
	}

	remote, err := newRemote(cfg, "", logger.ComponentLogger("omeka"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deref := mediaref.New(remote, mediaref.Options{
		ImageProperty: property,
		PerPage:       cfg.Omeka.GetPerPage(),
		Logger:        logger.ComponentLogger("media"),
	})
	report, runErr := deref.Run(ctx, sourceItemSet(cmd, cfg.Link.SourceItemSet))
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

	err = display.Table(out, []string{"processed", "succeeded", "failed", "skipped", "media created"}, [][]string{{
		strconv.Itoa(report.Processed),
		strconv.Itoa(report.Succeeded),
		strconv.Itoa(report.Failed),
		strconv.Itoa(report.Skipped),
		strconv.Itoa(report.Created),
	}})
	if err != nil {
		return err
	}
	if report.Interrupted {
		fmt.Fprintln(out, "Run interrupted")
	}
	return runErr
}
