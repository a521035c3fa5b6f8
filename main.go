package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/cttgateway/internal/server"
	"github.com/tournevent/cttgateway/internal/storage/pgtoken"
	"github.com/tournevent/cttgateway/pkg/gateway"
	"github.com/tournevent/cttgateway/pkg/shipper"
	"go.uber.org/zap"
)

var version = "0.0.1"

const dateLayout = "2006-01-02"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "cttgateway",
	Short:   "CTT Express carrier gateway - shipments, labels, tracking and manifests",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Download the shipping manifests of a date range",
	RunE:  runManifest,
}

var pickupCmd = &cobra.Command{
	Use:   "pickup",
	Short: "Book a courier pickup",
	RunE:  runPickup,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the credentials and service type of an account",
	RunE:  runValidate,
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Print the tracking history of a shipment",
	RunE:  runTrack,
}

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Download the label of a shipment",
	RunE:  runLabel,
}

var purgeTokensCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Delete expired tokens from the postgres token store",
	RunE:  runPurgeTokens,
}

var flags struct {
	account string
	from    string
	to      string
	format  string
	out     string
	date    string
	minHour string
	maxHour string
	ref     string
	code    string
	ids     []string
}

func init() {
	for _, cmd := range []*cobra.Command{pickupCmd, validateCmd, trackCmd, labelCmd} {
		cmd.Flags().StringVarP(&flags.account, "account", "a", "", "carrier account id")
		cmd.MarkFlagRequired("account")
	}
	for _, cmd := range []*cobra.Command{manifestCmd, labelCmd} {
		cmd.Flags().StringVarP(&flags.out, "out", "o", ".", "output directory")
	}

	manifestCmd.Flags().StringVar(&flags.from, "from", "", "first shipping date (YYYY-MM-DD)")
	manifestCmd.Flags().StringVar(&flags.to, "to", "", "last shipping date (YYYY-MM-DD), defaults to --from")
	manifestCmd.Flags().StringVar(&flags.format, "format", string(shipper.ManifestXLSX), "report format (PDF or XLSX)")
	manifestCmd.Flags().StringSliceVar(&flags.ids, "accounts", nil, "restrict to these account ids")
	manifestCmd.MarkFlagRequired("from")

	pickupCmd.Flags().StringVar(&flags.date, "date", "", "pickup date (YYYY-MM-DD)")
	pickupCmd.Flags().StringVar(&flags.minHour, "min-hour", "09:00", "window start (HH:MM)")
	pickupCmd.Flags().StringVar(&flags.maxHour, "max-hour", "14:00", "window end (HH:MM)")
	pickupCmd.MarkFlagRequired("date")

	trackCmd.Flags().StringVar(&flags.ref, "ref", "", "tracking reference (comma separated codes)")
	trackCmd.MarkFlagRequired("ref")

	labelCmd.Flags().StringVar(&flags.code, "code", "", "tracking code")
	labelCmd.MarkFlagRequired("code")

	rootCmd.AddCommand(serveCmd, manifestCmd, pickupCmd, validateCmd, trackCmd, labelCmd, purgeTokensCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("Starting CTT gateway",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
	)

	srv := server.New(server.Config{Port: a.cfg.Port}, a.gateway, a.logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runManifest(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(dateLayout, flags.from)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	var to time.Time
	if flags.to != "" {
		if to, err = time.Parse(dateLayout, flags.to); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sets, err := a.gateway.PullManifests(cmd.Context(), gateway.ManifestQuery{
		From:       from,
		To:         to,
		Format:     shipper.ManifestFormat(flags.format),
		AccountIDs: flags.ids,
	})
	if err != nil {
		return err
	}
	for _, set := range sets {
		if err := writeAttachments(cmd, flags.out, set.Attachments); err != nil {
			return err
		}
	}
	return nil
}

func runPickup(cmd *cobra.Command, args []string) error {
	date, err := time.Parse(dateLayout, flags.date)
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	code, err := a.gateway.RequestPickup(cmd.Context(), flags.account, &shipper.PickupRequest{
		Date: date, MinHour: flags.minHour, MaxHour: flags.maxHour,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), code)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.gateway.ValidateAccount(cmd.Context(), flags.account); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "account %s is valid\n", flags.account)
	return nil
}

func runTrack(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	update, err := a.gateway.UpdateTrackingState(cmd.Context(), flags.account, flags.ref)
	if err != nil {
		return err
	}
	if update == nil {
		return fmt.Errorf("no tracking code in %q", flags.ref)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", update.TrackingCode, update.State)
	fmt.Fprintln(out, update.HistoryText())
	fmt.Fprintln(out, gateway.TrackingLink(update.TrackingCode))
	return nil
}

func runLabel(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	attachments, err := a.gateway.Label(cmd.Context(), flags.account, flags.code)
	if err != nil {
		return err
	}
	return writeAttachments(cmd, flags.out, attachments)
}

func runPurgeTokens(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	store, ok := a.tokens.(*pgtoken.Store)
	if !ok {
		return fmt.Errorf("purge-tokens needs TOKEN_CACHE=postgres, got %q", a.cfg.TokenCache)
	}

	n, err := store.Purge(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	a.logger.Info("Purged expired tokens", zap.Int64("rows", n))
	return nil
}

func writeAttachments(cmd *cobra.Command, dir string, attachments []gateway.Attachment) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, att := range attachments {
		path := filepath.Join(dir, att.Filename)
		if err := os.WriteFile(path, att.Content, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
