package archive

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// Embedder turns text chunks into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists embedded chunks.
type Store interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
}

// Archiver indexes the sources of a research run into the vector archive so
// the Q&A agent can retrieve them later. Sources are chunked, embedded and
// stored; failures are logged per source and never abort the batch.
type Archiver struct {
	Embedder Embedder
	Store    Store
	Logger   *slog.Logger

	ChunkSize    int
	ChunkOverlap int
	// Concurrency caps how many sources are embedded in parallel.
	Concurrency int

	mu       sync.Mutex
	archived map[string]bool
}

func NewArchiver(embedder Embedder, store Store, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		Embedder:     embedder,
		Store:        store,
		Logger:       logger,
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Concurrency:  3,
		archived:     make(map[string]bool),
	}
}

// Setup ensures the pgvector extension and the archive table exist.
func Setup(ctx context.Context, db *database.PostgresDB, collection string, dimension int) error {
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return err
	}
	return db.CreateEmbeddingsTable(ctx, collection, dimension)
}

// ArchiveSources indexes the given sources. Sources already archived by this
// Archiver are skipped, so it is safe to call with the full source list after
// every iteration.
func (a *Archiver) ArchiveSources(ctx context.Context, topic string, sources []research.SourceRecord) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, a.Concurrency)

	for _, src := range sources {
		a.mu.Lock()
		key := research.NormalizeURL(src.URL)
		if a.archived[key] {
			a.mu.Unlock()
			continue
		}
		a.archived[key] = true
		a.mu.Unlock()

		wg.Add(1)
		go func(src research.SourceRecord) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			if err := a.archiveOne(ctx, topic, src); err != nil {
				a.Logger.Error("Failed to archive source", "url", src.URL, "error", err)
			}
		}(src)
	}
	wg.Wait()
}

func (a *Archiver) archiveOne(ctx context.Context, topic string, src research.SourceRecord) error {
	text := src.Excerpt
	if text == "" {
		a.Logger.Warn("Source has no content to archive", "url", src.URL)
		return nil
	}

	ts := splitter.NewRecursiveCharacterTextSplitter(a.ChunkSize, a.ChunkOverlap)
	chunks, err := ts.SplitText(text)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := a.Embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return err
	}

	documents := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		documents[i] = vectorstore.Document{
			Content: chunk,
			Metadata: map[string]interface{}{
				"source": src.URL,
				"title":  src.Title,
				"topic":  topic,
				"query":  src.Query,
			},
			Embedding: vectors[i],
		}
	}

	if err := a.Store.AddDocuments(ctx, documents); err != nil {
		return err
	}

	a.Logger.Info("Archived source", "url", src.URL, "chunks", len(chunks))
	return nil
}
