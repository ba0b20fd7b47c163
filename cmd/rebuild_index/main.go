package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yungbote/catalog-search-backend/internal/app"
	"github.com/yungbote/catalog-search-backend/internal/datapoint"
	"github.com/yungbote/catalog-search-backend/internal/modules/indexing"
	"github.com/yungbote/catalog-search-backend/internal/platform/envutil"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/temporalx"
	"github.com/yungbote/catalog-search-backend/internal/temporalx/rebuild"
)

func main() {
	var (
		scope       string
		products    string
		viaTemporal bool
		showItems   bool
	)
	flag.StringVar(&scope, "scope", "text", "index to rebuild: text, image or all")
	flag.StringVar(&products, "products", "", "comma-separated product ids for an incremental rebuild")
	flag.BoolVar(&viaTemporal, "temporal", false, "run as a Temporal workflow and wait for its summary")
	flag.BoolVar(&showItems, "items", false, "print per-item outcomes (inline runs only)")
	flag.Parse()

	_ = godotenv.Load()
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	kinds, err := parseScope(scope)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}
	ids := splitIDs(products)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(log)
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}

	failed := false
	if viaTemporal {
		failed = runTemporal(ctx, log, cfg, kinds, ids)
	} else {
		failed = runInline(ctx, log, cfg, kinds, ids, showItems)
	}
	if failed {
		log.Sync()
		os.Exit(1)
	}
}

func runInline(ctx context.Context, log *logger.Logger, cfg app.Config, kinds []datapoint.Kind, ids []string, showItems bool) bool {
	a, err := app.New(ctx, log, cfg)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		return true
	}
	defer a.Close()

	failed := false
	for _, kind := range kinds {
		res, err := a.Builder.Rebuild(ctx, indexing.Scope{Kind: kind, ProductIDs: ids})
		printJSON(summaryOf(res, showItems))
		if err != nil {
			log.Error("rebuild failed", "scope", string(kind), "error", err)
			failed = true
		}
	}
	return failed
}

func runTemporal(ctx context.Context, log *logger.Logger, cfg app.Config, kinds []datapoint.Kind, ids []string) bool {
	tc, err := temporalx.NewClient(log, cfg.Temporal)
	if err != nil || tc == nil {
		fmt.Printf("temporal client unavailable: %v\n", err)
		return true
	}
	defer tc.Close()

	failed := false
	for _, kind := range kinds {
		run, err := rebuild.Start(ctx, tc, cfg.Temporal.TaskQueue, indexing.Scope{Kind: kind, ProductIDs: ids})
		if err != nil {
			log.Error("start rebuild workflow failed", "scope", string(kind), "error", err)
			failed = true
			continue
		}
		log.Info("rebuild workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
		var out rebuild.Summary
		if err := run.Get(ctx, &out); err != nil {
			log.Error("rebuild workflow failed", "scope", string(kind), "error", err)
			failed = true
			continue
		}
		printJSON(out)
	}
	return failed
}

type inlineSummary struct {
	Scope             string                 `json:"scope"`
	ProductIDs        []string               `json:"product_ids,omitempty"`
	Upserted          int                    `json:"upserted"`
	Failed            int                    `json:"failed"`
	Skipped           int                    `json:"skipped"`
	StaleRemoved      int                    `json:"stale_removed"`
	StaleRemoveFailed int                    `json:"stale_remove_failed"`
	Batches           int                    `json:"batches"`
	FailedItems       []indexing.ItemOutcome `json:"failed_items,omitempty"`
	Items             []indexing.ItemOutcome `json:"items,omitempty"`
}

func summaryOf(res indexing.RebuildResult, showItems bool) inlineSummary {
	out := inlineSummary{
		Scope:             string(res.Scope.Kind),
		ProductIDs:        res.Scope.ProductIDs,
		Upserted:          res.Upserted,
		Failed:            res.Failed,
		Skipped:           res.Skipped,
		StaleRemoved:      res.StaleRemoved,
		StaleRemoveFailed: res.StaleRemoveFailed,
		Batches:           len(res.Batches),
	}
	for _, it := range res.Outcomes() {
		if it.Status == indexing.StatusFailed {
			out.FailedItems = append(out.FailedItems, it)
		}
	}
	if showItems {
		out.Items = res.Outcomes()
	}
	return out
}

func parseScope(raw string) ([]datapoint.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text":
		return []datapoint.Kind{datapoint.KindText}, nil
	case "image", "images":
		return []datapoint.Kind{datapoint.KindImage}, nil
	case "all":
		return []datapoint.Kind{datapoint.KindText, datapoint.KindImage}, nil
	default:
		return nil, fmt.Errorf("invalid -scope %q (want text, image or all)", raw)
	}
}

func splitIDs(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(b))
}
