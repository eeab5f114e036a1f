package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// WarmupMessage asks the portal to cache one player
type WarmupMessage struct {
	Username string `json:"username"`
}

// readNames returns the nicknames in r, one per line. Blank lines and lines
// starting with # are skipped.
func readNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading names: %w", err)
	}
	return names, nil
}

// collectNames merges command-line names with the names in file, keeping
// the first occurrence of each
func collectNames(args []string, file string) ([]string, error) {
	names := append([]string(nil), args...)
	if file != "" {
		var r io.Reader = os.Stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", file, err)
			}
			defer f.Close()
			r = f
		}
		fromFile, err := readNames(r)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}

	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "vimestats-warmup", "Kafka topic")
	file := flag.String("file", "", "File with one nickname per line (- for stdin)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [nickname ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	names, err := collectNames(flag.Args(), *file)
	if err != nil {
		logger.Error("failed to collect nicknames", "error", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		logger.Error("failed to create producer", "error", err)
		os.Exit(1)
	}

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			logger.Warn("producer error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("publishing warm-up nicknames", "brokers", *brokers, "topic", *topic, "count", len(names))

publish:
	for _, name := range names {
		data, err := json.Marshal(WarmupMessage{Username: name})
		if err != nil {
			logger.Warn("failed to marshal message", "username", name, "error", err)
			continue
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(name),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-sigChan:
			logger.Info("interrupted, flushing")
			break publish
		}
	}

	producer.AsyncClose()
	wg.Wait()

	logger.Info("completed",
		"sent", atomic.LoadInt64(&successCount),
		"errors", atomic.LoadInt64(&errorCount),
	)
	if atomic.LoadInt64(&errorCount) > 0 {
		os.Exit(1)
	}
}
