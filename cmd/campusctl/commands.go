package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/campusconnect/campusconnect/internal/client"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/reconcile"
	"github.com/campusconnect/campusconnect/internal/services"
)

var (
	listStatus string
	listOwner  string
	listQuery  string

	reportTitle       string
	reportDescription string
	reportLocation    string
	reportContact     string
	reportDate        string
	reportImage       string
	reportRetries     int

	watchPush     bool
	watchInterval time.Duration
	watchAll      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List found items",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report a found item",
	Long: `Report a found item. The item is owned by --user.

If the server cannot be reached the report is retried --retries times
before giving up; a report that never reached the server is lost when
campusctl exits.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var claimCmd = &cobra.Command{
	Use:     "claim <id>",
	Aliases: []string{"done"},
	Short:   "Mark a found item as claimed",
	Args:    cobra.ExactArgs(1),
	RunE:    runClaim,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a found item you reported",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the board live until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (active, claimed)")
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Filter by reporter email")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search title, description and location")

	reportCmd.Flags().StringVarP(&reportTitle, "title", "t", "", "What was found (required)")
	reportCmd.Flags().StringVarP(&reportDescription, "description", "d", "", "Details")
	reportCmd.Flags().StringVarP(&reportLocation, "location", "l", "", "Where it was found")
	reportCmd.Flags().StringVarP(&reportContact, "contact", "c", "", "How to reach the finder")
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Date found, YYYY-MM-DD (default today)")
	reportCmd.Flags().StringVar(&reportImage, "image", "", "Photo to upload with the report")
	reportCmd.Flags().IntVar(&reportRetries, "retries", 2, "Retries for a report that could not be synced")

	watchCmd.Flags().BoolVar(&watchPush, "push", false, "Refresh on RabbitMQ item events instead of polling")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", client.DefaultPollInterval, "Polling interval")
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "Show claimed items too")
}

func parseFilter() (models.ItemFilter, error) {
	filter := models.ItemFilter{Owner: listOwner, Query: listQuery}
	if listStatus != "" {
		status, err := models.ParseItemStatus(listStatus)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	return filter, nil
}

func runList(cmd *cobra.Command, args []string) error {
	filter, err := parseFilter()
	if err != nil {
		return err
	}

	items, err := newClient().List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list found items: %w", err)
	}
	renderItems(cmd.OutOrStdout(), items)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	api := newClient()

	draft := reconcile.Draft{
		Title:       reportTitle,
		Description: reportDescription,
		Location:    reportLocation,
		Contact:     reportContact,
		Date:        reportDate,
		RequestKey:  "cli-report",
	}

	if reportImage != "" {
		uploaded, err := uploadImage(ctx, api, reportImage)
		if err != nil {
			return err
		}
		draft.ImageURI = uploaded.URL
	}

	r := newReconciler(api)
	item, err := r.Report(ctx, draft)
	for attempt := 0; errors.Is(err, models.ErrLocalOnly) && attempt < reportRetries; attempt++ {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved locally as %s, retrying...\n", item.ID)
		time.Sleep(time.Second << attempt)
		if err = r.RetryUnsynced(ctx); err == nil {
			synced := r.Items()
			item = synced[0]
		}
	}
	if err != nil {
		return fmt.Errorf("failed to report found item: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reported %s (%s)\n", item.ID, item.Title)
	return nil
}

func uploadImage(ctx context.Context, api *client.Client, path string) (models.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := api.UploadImage(ctx, filepath.Base(path), contentType, f)
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("failed to upload image: %w", err)
	}
	log.Debug().Str("url", result.URL).Msg("Image uploaded")
	return result, nil
}

func runClaim(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r := newReconciler(newClient())
	if err := r.Refresh(ctx, models.ItemFilter{}); err != nil {
		return err
	}

	if err := r.MarkDone(ctx, args[0]); err != nil {
		if errors.Is(err, models.ErrQueued) {
			return retryQueued(cmd, r, err)
		}
		return fmt.Errorf("failed to claim item: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s\n", args[0])
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r := newReconciler(newClient())
	if err := r.Refresh(ctx, models.ItemFilter{}); err != nil {
		return err
	}

	if err := r.Delete(ctx, args[0], resolvedUser()); err != nil {
		switch {
		case errors.Is(err, models.ErrQueued):
			return retryQueued(cmd, r, err)
		case errors.Is(err, models.ErrForbidden):
			return fmt.Errorf("only the person who reported %s can delete it: %w", args[0], err)
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

// retryQueued gives a queued operation one more attempt before exiting, since
// the queue does not outlive the process.
func retryQueued(cmd *cobra.Command, r *reconcile.Reconciler, cause error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Applied locally, retrying: %v\n", cause)
	time.Sleep(time.Second)
	if err := r.RetryUnsynced(cmd.Context()); err != nil {
		return fmt.Errorf("change was not saved on the server: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Done")
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source client.EventSource
	if watchPush {
		url := getEnv("RABBITMQ_URL", "")
		if url == "" {
			return errors.New("--push needs RABBITMQ_URL")
		}
		consumer, err := services.NewRabbitMQConsumer(url, getEnv("RABBITMQ_EXCHANGE", "campus.events"), "")
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		// closed only after watchItems has torn the subscription down
		defer consumer.Close()
		source = consumer
	}

	return watchItems(ctx, cmd.OutOrStdout(), newClient(), source)
}

// watchItems renders the list on every change until ctx ends. With a nil
// source it polls. The subscription is stopped before it returns.
func watchItems(ctx context.Context, out io.Writer, api client.Remote, source client.EventSource) error {
	var sub client.Subscriber = client.NewPoller(api, watchInterval, models.ItemFilter{})
	if source != nil {
		sub = client.NewPushSubscriber(api, source, models.ItemFilter{}, watchInterval)
	}

	r := newReconciler(api)
	defer r.Close()

	cancel := r.Watch(func(items []models.FoundItem) {
		if !watchAll {
			items = activeOnly(items)
		}
		fmt.Fprintf(out, "\n%s  %d item(s)\n", time.Now().Format(time.Kitchen), len(items))
		renderItems(out, items)
	})
	defer cancel()

	r.Attach(sub)
	<-ctx.Done()
	return nil
}
