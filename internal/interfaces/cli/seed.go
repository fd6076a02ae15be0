package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/networknext/portal/internal/application/ingest"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/infrastructure/messaging/kafka"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
)

// seedFile is the YAML layout accepted by portalctl seed:
//
//	sessions:
//	  - user_id: alice            # hashed like the SDK does; or give user_hash
//	    session_id: 1f2e3d4c5b6a7988
//	    start_time: 2024-05-01T12:00:00Z
//	    buyer_code: acme
//	    datacenter: google.iowa.1
//	    platform: ps5
//	    connection: wired
//	    next: true
//	    next_rtt: 32.5
type seedFile struct {
	Sessions []seedRecord `yaml:"sessions"`
}

type seedRecord struct {
	UserID        string `yaml:"user_id"`
	session.Entry `yaml:",inline"`
}

// loadSeedFile parses path and returns validated entries. now fills missing
// start and update times.
func loadSeedFile(path string, now time.Time) ([]session.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	entries := make([]session.Entry, 0, len(f.Sessions))
	for i, rec := range f.Sessions {
		e := rec.Entry
		if rec.UserID != "" {
			e.UserHash = session.HashUserID(rec.UserID)
		}
		if e.UserHash == 0 {
			return nil, fmt.Errorf("seed entry %d: user_id or user_hash is required", i)
		}
		if e.StartTime.IsZero() {
			e.StartTime = now
		}
		if e.LastUpdate.IsZero() {
			e.LastUpdate = now
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func newSeedCmd(openBackend BackendOpener, openPublisher PublisherOpener) *cobra.Command {
	var viaKafka bool
	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load session entries from a YAML file",
		Long: "Loads session entries into the session store for development and test\n" +
			"environments. With --kafka the entries are published as portal session\n" +
			"updates instead, exercising the cruncher end to end.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			entries, err := loadSeedFile(args[0], time.Now().UTC().Truncate(time.Second))
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd.Context(), cliCtx)
			defer cancel()

			if viaKafka {
				pub, err := openPublisher(cliCtx.Config.Kafka, cliCtx.Logger)
				if err != nil {
					return err
				}
				defer pub.Close()

				msgs := make([]*kafka.ProducerMessage, 0, len(entries))
				for _, e := range entries {
					value, err := json.Marshal(ingest.FromEntry(e))
					if err != nil {
						return err
					}
					msgs = append(msgs, &kafka.ProducerMessage{
						Topic: cliCtx.Config.Kafka.Topic,
						Key:   []byte(e.SessionID.String()),
						Value: value,
					})
				}
				if err := pub.Publish(ctx, msgs...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d session update(s) to %s\n", len(msgs), cliCtx.Config.Kafka.Topic)
				return nil
			}

			backend, err := openBackend(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			for _, e := range entries {
				if err := backend.Sessions.Record(ctx, e); err != nil {
					return err
				}
				cliCtx.Logger.Debug("Seeded session",
					logging.String("session_id", e.SessionID.String()),
					logging.String("user_hash", e.UserHash.String()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d session(s)\n", len(entries))
			return nil
		},
	}
	cmd.Flags().BoolVar(&viaKafka, "kafka", false, "publish to the session update topic instead of writing to Redis")
	return cmd
}
