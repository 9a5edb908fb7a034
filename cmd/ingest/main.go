package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Posts a local text file to a running server's ingest endpoint.
func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8000", "server base URL")
		title     = flag.String("title", "", "book title (defaults to the file name)")
		author    = flag.String("author", "Unknown", "book author")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <text-file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	bookTitle := strings.TrimSpace(*title)
	if bookTitle == "" {
		bookTitle = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	payload, err := json.Marshal(map[string]any{
		"title":   bookTitle,
		"author":  *author,
		"content": string(content),
		"metadata": map[string]string{
			"source_file": filepath.Base(path),
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Post(strings.TrimRight(*serverURL, "/")+"/books/ingest",
		"application/json", bytes.NewReader(payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "ingest failed: status=%d body=%s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		os.Exit(1)
	}
	fmt.Println(strings.TrimSpace(string(body)))
}
