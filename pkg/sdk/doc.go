// Package finsight is an embeddable Go client for the finsight financial
// question-answering engine. It wires the same services the HTTP server uses,
// in-process, against Qdrant or a Valkey/Redis search index.
//
// # Analysis
//
//	client, _ := finsight.New(ctx,
//	    finsight.WithQdrant("localhost", 6334, ""),
//	    finsight.WithEmbedding("http://localhost:8001"),
//	    finsight.WithCompletion(os.Getenv("GROQ_API_KEY"), ""),
//	)
//	defer client.Close()
//	bundle, _ := client.Analyze(ctx, "Should I buy Apple?", 3)
//
// # Retrieval only
//
//	hits, _ := client.Search(ctx, "supply chain risk", 5, map[string]string{"ticker": "AAPL"})
//
// # Loading passages (Valkey/Redis only)
//
//	results, _ := client.IndexPassages(ctx, []finsight.Passage{{
//	    ID:       "aapl-10k-2024-17",
//	    Text:     "Net sales increased 2% year over year...",
//	    Metadata: map[string]string{"ticker": "AAPL", "form_type": "10-K"},
//	}})
package finsight
