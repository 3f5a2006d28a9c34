package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fyerfyer/nerf-processor/internal/ner"
	"github.com/fyerfyer/nerf-processor/internal/pyprovider"
	"github.com/fyerfyer/nerf-processor/internal/summary"
	"github.com/sirupsen/logrus"
)

const sampleText = "Jane Doe is a software engineer based in Berlin. " +
	"Contact her at jane.doe@example.com or +49 30 1234567. " +
	"She worked at Acme Corporation and holds a degree in Computer Science."

// 对Python推理服务做一次NER与摘要调用，检查服务是否可用
func main() {
	baseURL := flag.String("url", "http://localhost:8000/api", "Python service base URL")
	text := flag.String("text", sampleText, "Text to run through the service")
	timeout := flag.Duration("timeout", 60*time.Second, "Request timeout")
	skipSummary := flag.Bool("skip-summary", false, "Only call the NER endpoint")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	client, err := pyprovider.NewClient(pyprovider.DefaultConfig().
		WithBaseURL(*baseURL).
		WithTimeout(*timeout).
		WithRetry(0, 0))
	if err != nil {
		logger.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	raw, err := pyprovider.NewNERClient(client, pyprovider.DefaultNERModel).Recognize(ctx, *text)
	if err != nil {
		logger.Fatalf("NER request failed: %v", err)
	}
	entities := ner.Clean(raw)
	logger.WithFields(logrus.Fields{
		"raw":     len(raw),
		"cleaned": len(entities),
	}).Info("NER request succeeded")

	result := map[string]interface{}{"entities": entities}

	if !*skipSummary {
		composer := summary.NewComposer(
			pyprovider.NewSummarizeClient(client, pyprovider.DefaultSummarizationModel),
			summary.WithLogger(logger),
		)
		summaryText, err := composer.Compose(ctx, entities, *text)
		if err != nil {
			logger.Fatalf("Summarize request failed: %v", err)
		}
		result["summary"] = summaryText
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(1)
	}
}
