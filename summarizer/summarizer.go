package summarizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/contenox/modelrouter/internal/modelrepo"
	"golang.org/x/sync/errgroup"
)

// mapMaxParallel caps the number of concurrent chunk summarization
// calls regardless of what the caller asks for.
const mapMaxParallel = 3

var ErrNoChunks = errors.New("no chunks to summarize")

// Options tunes the prompts and concurrency of one summarization run.
// MinChunkChars and MinFinalChars are prompt guidance only; the model's
// output length is never verified against them.
type Options struct {
	TargetLanguage string `json:"targetLanguage"`
	MaxParallel    int    `json:"maxParallel"`
	DetailLevel    string `json:"detailLevel"`
	Instructions   string `json:"instructions,omitempty"`
	PromptProfile  string `json:"promptProfile"`
	MinChunkChars  int    `json:"minChunkChars"`
	MinFinalChars  int    `json:"minFinalChars"`
}

// Result carries the final summary, the per-chunk intermediates in
// chunk-index order, and one usage record per model call in the order
// the calls were accounted (all chunk calls, then the reduce call).
type Result struct {
	Summary        string                  `json:"summary"`
	ChunkSummaries []string                `json:"chunkSummaries"`
	Usage          []modelrepo.UsageRecord `json:"usage"`
}

// promptProfiles are optional domain guidance blocks injected into both
// the map and reduce prompts.
var promptProfiles = map[string]string{
	"general":   "",
	"technical": "Preserve exact identifiers, version numbers, and command names. Do not paraphrase code or configuration fragments.",
	"legal":     "Preserve party names, dates, amounts, and obligations verbatim. Flag ambiguity instead of resolving it.",
	"meeting":   "Structure the summary around decisions made, open questions, and action items with their owners.",
}

// Summarize runs a map-reduce summarization: one chat call per chunk in
// bounded parallel, then exactly one reduce call over the relabeled
// chunk summaries. Chunk calls are not retried.
func Summarize(ctx context.Context, provider modelrepo.Provider, model string, chunks []Chunk, opts Options) (*Result, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	client, err := provider.GetChatConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat connection: %w", err)
	}

	parallel := opts.MaxParallel
	if parallel < 1 {
		parallel = 1
	}
	if parallel > mapMaxParallel {
		parallel = mapMaxParallel
	}

	type chunkOutcome struct {
		index   int
		summary string
		usage   modelrepo.UsageRecord
	}
	outcomes := make([]chunkOutcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, chunk := range chunks {
		g.Go(func() error {
			prompt := chunkPrompt(chunk, len(chunks), opts)
			result, usage, err := client.Chat(gctx, model, []modelrepo.Message{
				{Role: "user", Content: prompt},
			})
			if err != nil {
				return fmt.Errorf("chunk %d summarization failed: %w", chunk.Index, err)
			}
			text := strings.TrimSpace(result.Message.Content)
			if text == "" {
				return fmt.Errorf("chunk %d produced an empty summary", chunk.Index)
			}
			outcomes[chunk.Index] = chunkOutcome{index: chunk.Index, summary: text, usage: usage}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Parallel completion order is arbitrary; the reduce step must see
	// the summaries in original chunk order.
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })

	result := &Result{
		ChunkSummaries: make([]string, 0, len(outcomes)),
		Usage:          make([]modelrepo.UsageRecord, 0, len(outcomes)+1),
	}
	for _, o := range outcomes {
		result.ChunkSummaries = append(result.ChunkSummaries, o.summary)
		result.Usage = append(result.Usage, o.usage)
	}

	reduced, usage, err := client.Chat(ctx, model, []modelrepo.Message{
		{Role: "user", Content: reducePrompt(result.ChunkSummaries, opts)},
	})
	if err != nil {
		return nil, fmt.Errorf("final reduction failed: %w", err)
	}
	result.Summary = strings.TrimSpace(reduced.Message.Content)
	result.Usage = append(result.Usage, usage)
	return result, nil
}

func chunkPrompt(chunk Chunk, total int, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize part %d of %d of a longer document.\n", chunk.Index+1, total)
	writeGuidance(&b, opts, opts.MinChunkChars)
	b.WriteString("\nText:\n")
	b.WriteString(chunk.Text)
	return b.String()
}

func reducePrompt(summaries []string, opts Options) string {
	var b strings.Builder
	b.WriteString("Combine the following partial summaries of one document into a single coherent summary.\n")
	writeGuidance(&b, opts, opts.MinFinalChars)
	b.WriteString("\n")
	for i, summary := range summaries {
		fmt.Fprintf(&b, "Part %d:\n%s\n\n", i+1, summary)
	}
	return b.String()
}

func writeGuidance(b *strings.Builder, opts Options, minChars int) {
	if opts.TargetLanguage != "" {
		fmt.Fprintf(b, "Write the summary in %s.\n", opts.TargetLanguage)
	}
	if opts.DetailLevel != "" {
		fmt.Fprintf(b, "Detail level: %s.\n", opts.DetailLevel)
	}
	if guidance := promptProfiles[opts.PromptProfile]; guidance != "" {
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	if minChars > 0 {
		fmt.Fprintf(b, "Aim for at least %d characters.\n", minChars)
	}
	if opts.Instructions != "" {
		b.WriteString(opts.Instructions)
		b.WriteString("\n")
	}
}
