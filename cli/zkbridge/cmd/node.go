package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/zkbridge/internal/bridge"
	"github.com/alphabill-org/zkbridge/internal/events"
	"github.com/alphabill-org/zkbridge/internal/keyvaluedb"
	"github.com/alphabill-org/zkbridge/internal/keyvaluedb/boltdb"
	"github.com/alphabill-org/zkbridge/internal/keyvaluedb/memorydb"
	"github.com/alphabill-org/zkbridge/internal/logger"
	"github.com/alphabill-org/zkbridge/internal/rpc"
	"github.com/alphabill-org/zkbridge/internal/state"
	"github.com/alphabill-org/zkbridge/internal/verifier"
	"github.com/alphabill-org/zkbridge/internal/verifier/groth16"
)

const (
	defaultServerAddr = "localhost:9654"
	defaultDbFileName = "bridge.db"

	verifierDigest  = "digest"
	verifierGroth16 = "groth16"
)

var log = logger.CreateForPackage()

type nodeConfig struct {
	Base *baseConfiguration

	ServerAddr        string
	DbFile            string
	InMemory          bool
	Verifier          string
	VerifyingKeyFile  string
	NatsURL           string
	NatsSubjectPrefix string
	StorageBudget     int
	MaxQueueLength    int
	MaxProofSize      uint64
	InlineProofLimit  int
	MaxBodySize       int64
}

func newNodeCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &nodeConfig{Base: baseConfig}
	var nodeCmd = &cobra.Command{
		Use:   "node",
		Short: "starts the bridge node",
		Long:  "starts the bridge node, serves the REST API and publishes committed state changes to NATS when configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd.Context(), config)
		},
	}
	nodeCmd.Flags().StringVarP(&config.ServerAddr, "address", "a", defaultServerAddr, "REST server address")
	nodeCmd.Flags().StringVarP(&config.DbFile, "db", "f", "", fmt.Sprintf("path to the database file (default: $ZKB_HOME/%s)", defaultDbFileName))
	nodeCmd.Flags().BoolVar(&config.InMemory, "in-memory", false, "keep the state in memory only, nothing is persisted")
	nodeCmd.Flags().StringVar(&config.Verifier, "verifier", verifierGroth16, fmt.Sprintf("proof verifier, one of: %s, %s (digest is for development only)", verifierGroth16, verifierDigest))
	nodeCmd.Flags().StringVar(&config.VerifyingKeyFile, "vk-file", "", "groth16 verifying key file (gnark binary encoding)")
	nodeCmd.Flags().StringVar(&config.NatsURL, "nats-url", "", "NATS server URL, events are only logged when not set")
	nodeCmd.Flags().StringVar(&config.NatsSubjectPrefix, "nats-subject-prefix", events.DefaultSubjectPrefix, "prefix of the NATS subjects events are published to")
	nodeCmd.Flags().IntVar(&config.StorageBudget, "storage-budget", bridge.DefaultStorageBudget, "max encoded size of the platform record in bytes")
	nodeCmd.Flags().IntVar(&config.MaxQueueLength, "max-queue-length", 0, "max number of pending ramp transactions per platform, 0 means no limit")
	nodeCmd.Flags().Uint64Var(&config.MaxProofSize, "max-proof-size", bridge.DefaultMaxProofSize, "max size of an uploaded proof in bytes")
	nodeCmd.Flags().IntVar(&config.InlineProofLimit, "inline-proof-limit", bridge.DefaultInlineProofLimit, "max size of a proof passed inline to prove")
	nodeCmd.Flags().Int64Var(&config.MaxBodySize, "max-body-size", rpc.DefaultMaxBodySize, "max size of the REST request body in bytes")
	return nodeCmd
}

func (c *nodeConfig) GetDbFile() (string, error) {
	if c.DbFile != "" {
		return c.DbFile, nil
	}
	if err := os.MkdirAll(c.Base.HomeDir, 0700); err != nil { // -rwx------
		return "", err
	}
	return filepath.Join(c.Base.HomeDir, defaultDbFileName), nil
}

func (c *nodeConfig) openDB() (keyvaluedb.KeyValueDB, error) {
	if c.InMemory {
		log.Warning("state is kept in memory, it is lost when the node stops")
		return memorydb.New(), nil
	}
	dbFile, err := c.GetDbFile()
	if err != nil {
		return nil, err
	}
	return boltdb.New(dbFile)
}

func (c *nodeConfig) newVerifier() (verifier.Verifier, error) {
	switch c.Verifier {
	case verifierGroth16:
		if c.VerifyingKeyFile == "" {
			return nil, errors.New("groth16 verifier requires --vk-file")
		}
		return groth16.LoadVerifyingKey(c.VerifyingKeyFile)
	case verifierDigest:
		log.Warning("digest verifier accepts proofs anyone can create, do not use it in production")
		return verifier.DigestVerifier{}, nil
	default:
		return nil, fmt.Errorf("unknown verifier %q", c.Verifier)
	}
}

func runNode(ctx context.Context, config *nodeConfig) (rErr error) {
	v, err := config.newVerifier()
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}
	db, err := config.openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			rErr = errors.Join(rErr, fmt.Errorf("closing database: %w", err))
		}
	}()
	empty, err := keyvaluedb.IsEmpty(db)
	if err != nil {
		return fmt.Errorf("reading database: %w", err)
	}
	if empty {
		log.Info("database is empty, no platforms registered yet")
	}
	store, err := state.New(db)
	if err != nil {
		return err
	}

	opts := []bridge.Option{
		bridge.WithStorageBudget(config.StorageBudget),
		bridge.WithMaxQueueLength(config.MaxQueueLength),
		bridge.WithMaxProofSize(config.MaxProofSize),
		bridge.WithInlineProofLimit(config.InlineProofLimit),
	}
	g, ctx := errgroup.WithContext(ctx)
	if config.NatsURL != "" {
		publisher, err := events.NewNatsPublisher(config.NatsURL, config.NatsSubjectPrefix)
		if err != nil {
			return err
		}
		opts = append(opts, bridge.WithEventPublisher(publisher))
		g.Go(func() error {
			<-ctx.Done()
			return publisher.Close()
		})
	}
	engine, err := bridge.New(store, v, opts...)
	if err != nil {
		return fmt.Errorf("creating bridge engine: %w", err)
	}

	g.Go(func() error {
		handler := &rpc.RequestHandler{Bridge: engine, MaxBodySize: config.MaxBodySize}
		return rpc.Run(ctx, config.ServerAddr, handler)
	})
	return g.Wait()
}
