package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// ArchiveToolset exposes the research source archive to the Q&A agent.
type ArchiveToolset struct {
	DB       *database.PostgresDB
	Embedder *embeddings.GoogleEmbedder
	config   *config.Config
}

func NewArchiveToolset(db *database.PostgresDB, embedder *embeddings.GoogleEmbedder, config *config.Config) *ArchiveToolset {
	return &ArchiveToolset{
		DB:       db,
		Embedder: embedder,
		config:   config,
	}
}

func (t *ArchiveToolset) Name() string {
	return "archive_tools"
}

func (t *ArchiveToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchSourcesArgs, SearchSourcesResp](
		functiontool.Config{
			Name:        "search_sources",
			Description: "Search the archived research sources using semantic search.",
		},
		t.searchSourcesTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	findBySourceTool, err := functiontool.New[FindSourceArgs, FindSourceResp](
		functiontool.Config{
			Name:        "find_by_source",
			Description: "Retrieve all archived content for a specific source URL.",
		},
		t.findBySourceTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_source tool: %w", err)
	}

	listSourcesTool, err := functiontool.New[ListSourcesArgs, ListSourcesResp](
		functiontool.Config{
			Name:        "list_sources",
			Description: "List the source URLs present in the research archive.",
		},
		t.listSourcesTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create list_sources tool: %w", err)
	}

	return []tool.Tool{searchTool, findBySourceTool, listSourcesTool}, nil
}

// --- Tool Implementations ---

type SearchSourcesArgs struct {
	Query  string `json:"query" description:"The search query"`
	TopK   int    `json:"topK,omitempty" description:"Number of results to return (default 5)"`
	Source string `json:"source,omitempty" description:"Optional source URL filter"`
}

type SearchSourcesResp struct {
	Results string `json:"results"`
}

// Wrapper for ADK tool interface
func (t *ArchiveToolset) searchSourcesTool(ctx tool.Context, args SearchSourcesArgs) (SearchSourcesResp, error) {
	return t.SearchSources(ctx, args)
}

// Public method using standard context
func (t *ArchiveToolset) SearchSources(ctx context.Context, args SearchSourcesArgs) (SearchSourcesResp, error) {
	if args.TopK == 0 {
		args.TopK = 5
	}
	collection := t.config.CollectionName

	slog.Info("Search archive", "query", args.Query, "topK", args.TopK, "source", args.Source)

	queryEmbedding, err := t.Embedder.EmbedText(ctx, args.Query)
	if err != nil {
		return SearchSourcesResp{}, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	store, err := vectorstore.NewPGVectorStore(t.DB.Pool, collection)
	if err != nil {
		return SearchSourcesResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	results, err := store.SimilaritySearch(ctx, queryEmbedding, args.TopK, args.Source)
	if err != nil {
		return SearchSourcesResp{}, fmt.Errorf("failed to search: %w", err)
	}

	var formatted []string
	for _, result := range results {
		source := "unknown"
		if s, ok := result.Document.Metadata["source"].(string); ok {
			source = s
		}
		title := ""
		if v, ok := result.Document.Metadata["title"].(string); ok {
			title = v
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("[Source]: %s\n", source))
		if title != "" {
			sb.WriteString(fmt.Sprintf("[Title]: %s\n", title))
		}
		sb.WriteString(fmt.Sprintf("[Content]: %s", result.Document.Content))
		formatted = append(formatted, sb.String())
	}

	return SearchSourcesResp{Results: strings.Join(formatted, "\n\n")}, nil
}

type FindSourceArgs struct {
	Source string `json:"source" description:"The source URL to retrieve content for"`
}

type FindSourceResp struct {
	Content string `json:"content"`
}

// Wrapper for ADK tool interface
func (t *ArchiveToolset) findBySourceTool(ctx tool.Context, args FindSourceArgs) (FindSourceResp, error) {
	return t.FindBySource(ctx, args)
}

// Public method using standard context
func (t *ArchiveToolset) FindBySource(ctx context.Context, args FindSourceArgs) (FindSourceResp, error) {
	store, err := vectorstore.NewPGVectorStore(t.DB.Pool, t.config.CollectionName)
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	results, err := store.GetContentBySource(ctx, args.Source)
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("failed to find content: %w", err)
	}

	var formatted []string
	for _, result := range results {
		formatted = append(formatted, result.Content)
	}

	return FindSourceResp{Content: strings.Join(formatted, "\n\n")}, nil
}

type ListSourcesArgs struct{}

type ListSourcesResp struct {
	Sources string `json:"sources"`
}

// Wrapper for ADK tool interface
func (t *ArchiveToolset) listSourcesTool(ctx tool.Context, _ ListSourcesArgs) (ListSourcesResp, error) {
	return t.ListSources(ctx)
}

// Public method using standard context
func (t *ArchiveToolset) ListSources(ctx context.Context) (ListSourcesResp, error) {
	store, err := vectorstore.NewPGVectorStore(t.DB.Pool, t.config.CollectionName)
	if err != nil {
		return ListSourcesResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	sources, err := store.ListSources(ctx)
	if err != nil {
		return ListSourcesResp{}, fmt.Errorf("failed to list sources: %w", err)
	}

	var formatted []string
	for _, s := range sources {
		formatted = append(formatted, fmt.Sprintf("%s (%s, %d chunks)", s.Source, s.Title, s.Chunks))
	}

	return ListSourcesResp{Sources: strings.Join(formatted, "\n")}, nil
}
