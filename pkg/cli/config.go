package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/chorus/pkg/adapter"
	"github.com/m-mizutani/chorus/pkg/repository"
	"github.com/m-mizutani/chorus/pkg/usecase/memory"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	backendMemory    = "memory"
	backendFirestore = "firestore"

	embedderGemini = "gemini"
	embedderHash   = "hash"
)

// config holds configuration values
type config struct {
	// Repository
	backend  string
	project  string
	database string
	seed     string

	logLevel string

	// Adapters
	geminiProject       string
	geminiLocation      string
	embedder            string
	embeddingDimensions int64
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Memory backend (memory, firestore); memory lives only for one process, load it with --seed",
			Value:       backendMemory,
			Sources:     cli.EnvVars("CHORUS_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "seed",
			Usage:       "YAML file with records to load before running the command",
			Sources:     cli.EnvVars("CHORUS_SEED"),
			Destination: &cfg.seed,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("CHORUS_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Embedding provider (gemini, hash)",
			Value:       embedderHash,
			Sources:     cli.EnvVars("CHORUS_EMBEDDER"),
			Destination: &cfg.embedder,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Embedding vector size",
			Value:       adapter.DefaultEmbeddingDimensions,
			Sources:     cli.EnvVars("CHORUS_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDimensions,
		},
	}
}

// withLogger attaches a logger built from --log-level to ctx
func (cfg *config) withLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.backend {
	case backendMemory:
		return repository.NewChromem(), nil

	case backendFirestore:
		if cfg.project == "" {
			return nil, goerr.New("project is required")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required")
		}

		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, nil

	default:
		return nil, goerr.New("unknown backend",
			goerr.V("backend", cfg.backend),
			goerr.V("supported", []string{backendMemory, backendFirestore}))
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithEmbeddingDimensions(int(cfg.embeddingDimensions)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return gemini, nil
}

// newEmbedder creates the embedding provider selected by --embedder
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	switch cfg.embedder {
	case embedderHash:
		return adapter.NewHashEmbedder(int(cfg.embeddingDimensions)), nil
	case embedderGemini:
		return cfg.newGemini(ctx)
	default:
		return nil, goerr.New("unknown embedder",
			goerr.V("embedder", cfg.embedder),
			goerr.V("supported", []string{embedderGemini, embedderHash}))
	}
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context, bucketName string) (adapter.Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	storage, err := adapter.NewStorage(ctx, bucketName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// ephemeralNotice is printed when a command writes to a backend that is
// discarded on exit
const ephemeralNotice = "Note: memory backend is process-local; written records are discarded on exit. Use --backend firestore to keep them."

// warnEphemeral tells the user that writes will not survive this process
func (cfg *config) warnEphemeral(ctx context.Context, w io.Writer) {
	if cfg.backend != backendMemory {
		return
	}
	logging.From(ctx).Warn("records written to the memory backend are not persisted", "backend", cfg.backend)
	fmt.Fprintln(w, ephemeralNotice)
}

// newMemory wires repository and embedder into the memory usecase and loads
// the seed file if one is given. The returned closer releases the repository.
func (cfg *config) newMemory(ctx context.Context) (*memory.UseCase, func(), error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := repo.Close(); err != nil {
			logging.From(ctx).Warn("failed to close repository", "error", err)
		}
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}

	uc := memory.New(repo, embedder)

	if cfg.seed != "" {
		records, err := loadSeed(cfg.seed)
		if err != nil {
			closer()
			return nil, nil, err
		}
		if err := uc.Import(ctx, records); err != nil {
			closer()
			return nil, nil, goerr.Wrap(err, "failed to import seed", goerr.V("path", cfg.seed))
		}
		logging.From(ctx).Debug("seed loaded", "path", cfg.seed, "records", len(records))
	}

	return uc, closer, nil
}
