package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rugflowhq/rugflow/constants"
	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
	"github.com/rugflowhq/rugflow/internal/fieldsync"
	"github.com/rugflowhq/rugflow/internal/storage"
)

// fieldsync is the operator's view of the local intake queue. Every
// command works against the same SQLite file the daemon uses; only
// "sync" needs a reachable backend.
func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldsync",
		Short: "Manage the rug intake queue on a field device",
	}
	rootCmd.PersistentFlags().String("config", "", "path to agent config (default ~/.rugflow/agent.yaml)")

	rootCmd.AddCommand(captureCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(retryCmd())
	rootCmd.AddCommand(discardCmd())
	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*fieldsync.AgentConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("RUGFLOW_AGENT_CONFIG")
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".rugflow", "agent.yaml")
		}
	}
	return fieldsync.LoadAgentConfig(path)
}

func openStore(cmd *cobra.Command) (*fieldsync.Store, *fieldsync.AgentConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, nil, err
	}
	store, err := fieldsync.OpenStore(cfg.StorePath())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func captureCmd() *cobra.Command {
	var (
		jobID   string
		company string
		length  float64
		width   float64
		rugType string
		notes   string
		photos  []string
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Queue a rug captured on site",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			jID, err := uuid.Parse(jobID)
			if err != nil {
				return fmt.Errorf("--job must be a UUID: %w", err)
			}
			cID, err := uuid.Parse(company)
			if err != nil {
				return fmt.Errorf("--company must be a UUID: %w", err)
			}
			if length <= 0 || width <= 0 {
				return fmt.Errorf("--length and --width must be positive")
			}
			if rugType == "" {
				return fmt.Errorf("--type is required")
			}

			ctx := context.Background()
			sub := &fieldsync.Submission{
				ID:        uuid.New(),
				JobID:     jID,
				CompanyID: cID,
				CreatedBy: cfg.UserID,
				LengthFt:  length,
				WidthFt:   width,
				RugType:   rugType,
				Notes:     notes,
			}
			if err := store.Enqueue(ctx, sub); err != nil {
				return err
			}

			spool := fieldsync.NewSpool(store, cfg.SpoolDir, slog.Default())
			for _, p := range photos {
				res, err := spool.AttachFile(ctx, sub.ID, p)
				if err != nil {
					return fmt.Errorf("attach %s: %w", p, err)
				}
				fmt.Printf("attached %s as %s\n", p, res.Key)
			}

			fmt.Printf("Submission %s queued. Drop more photos in %s\n",
				sub.ID, filepath.Join(cfg.SpoolDir, sub.ID.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "job UUID the rug belongs to")
	cmd.Flags().StringVar(&company, "company", "", "company UUID")
	cmd.Flags().Float64Var(&length, "length", 0, "rug length in feet")
	cmd.Flags().Float64Var(&width, "width", 0, "rug width in feet")
	cmd.Flags().StringVar(&rugType, "type", "", "rug type, e.g. \"persian wool\"")
	cmd.Flags().StringVar(&notes, "notes", "", "condition notes")
	cmd.Flags().StringArrayVar(&photos, "photo", nil, "photo file to attach (repeatable)")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a summary of the local queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.CountByStatus(context.Background())
			if err != nil {
				return err
			}

			fmt.Println("--- Rug Intake Queue ---")
			if len(counts) == 0 {
				fmt.Println("Queue is empty.")
				return nil
			}
			for _, status := range []constants.SubmissionStatus{
				constants.SubmissionPending,
				constants.SubmissionUploading,
				constants.SubmissionUploaded,
				constants.SubmissionFailed,
			} {
				if n, ok := counts[status]; ok {
					fmt.Printf("%s:\t%d\n", status, n)
				}
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			state, _ := cmd.Flags().GetString("state")
			subs, err := store.ListAll(context.Background())
			if err != nil {
				return err
			}

			shown := 0
			fmt.Println("ID\t\t\t\t\tRug\tStatus\tRetries\tLast error")
			for _, sub := range subs {
				if state != "" && string(sub.Status) != state {
					continue
				}
				fmt.Printf("%s\t%s %.0fx%.0f\t%s\t%d\t%s\n",
					sub.ID, sub.RugType, sub.LengthFt, sub.WidthFt,
					sub.Status, sub.RetryCount, sub.LastError)
				shown++
			}
			if shown == 0 {
				fmt.Println("No submissions found.")
			}
			return nil
		},
	}
	cmd.Flags().String("state", "", "filter by status (pending, uploading, uploaded, failed)")
	return cmd
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [submission-id]",
		Short: "Put a failed submission back in the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("submission id must be a UUID: %w", err)
			}
			if err := store.ResetForRetry(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Submission %s reset to pending.\n", id)
			return nil
		},
	}
}

func discardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard [submission-id]",
		Short: "Drop a submission and its photos without uploading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("submission id must be a UUID: %w", err)
			}
			if err := store.Discard(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Submission %s discarded.\n", id)
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Drain the queue to the backend now",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := cfg.Validate(); err != nil {
				return err
			}

			conn, err := grpc.NewClient(cfg.BackendAddr,
				grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("connect to backend: %w", err)
			}
			defer conn.Close()

			logger := slog.Default()
			uploader := fieldsync.NewUploader(
				storage.NewClient(storage.Config{
					BaseURL: cfg.Storage.BaseURL,
					Bucket:  cfg.Storage.Bucket,
					Token:   cfg.Storage.Token,
				}, logger),
				rugflowpb.NewSubmissionsServiceClient(conn),
				fieldsync.UploaderConfig{
					UserID:           cfg.UserID,
					UploadsPerSecond: cfg.UploadsPerSecond,
				}, logger)

			// No prober here; one shot relies on upload errors alone.
			svc := fieldsync.NewService(store, uploader, nil, fieldsync.ServiceConfig{
				Interval: time.Duration(cfg.SyncInterval),
				MaxEdge:  cfg.PhotoMaxEdge,
				Quality:  cfg.PhotoQuality,
			}, logger)

			ctx := context.Background()
			svc.TrySync(ctx)

			counts, err := store.CountByStatus(ctx)
			if err != nil {
				return err
			}
			remaining := counts[constants.SubmissionPending] + counts[constants.SubmissionFailed]
			if remaining == 0 {
				fmt.Println("Queue drained.")
			} else {
				fmt.Printf("%d submission(s) still queued.\n", remaining)
			}
			return nil
		},
	}
}
