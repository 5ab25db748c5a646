// Package scanlog persists scans for one order: an append-only CSV log and
// one image file per newly seen identifier. The log is the durable record;
// replaying it reconstructs the session's dedup state after a restart.
package scanlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

const (
	// LogName is the per-order log file name.
	LogName = "barcode_log.csv"
	// LogHeader is the header line written once when a log is created.
	LogHeader = "Timestamp,SKU"
	// TimeLayout is the timestamp layout used in log lines and image names.
	TimeLayout = "20060102-150405"
	// DefaultOrder is used when the operator supplies no order number.
	DefaultOrder = "NoOrder"
)

// Record is one scan: a timestamp (TimeLayout) and the identifier.
// Records are append-only; they are never mutated or deleted once written.
type Record struct {
	Timestamp string
	SKU       string
}

// Store files scans under <root>/<order>/.
type Store struct {
	root  string
	order string
}

// NewStore creates a store for one (root, order) pair. An empty root means
// the current working directory; an empty order becomes DefaultOrder.
func NewStore(root, order string) *Store {
	if root == "" {
		root = "."
	}
	order = strings.TrimSpace(order)
	if order == "" {
		order = DefaultOrder
	}
	return &Store{root: root, order: order}
}

// Order returns the effective order number.
func (s *Store) Order() string { return s.order }

// OrderFolder returns the order folder path without creating it.
func (s *Store) OrderFolder() string {
	return filepath.Join(s.root, s.order)
}

// EnsureOrderFolder creates the order folder if absent and returns its
// path. Idempotent.
func (s *Store) EnsureOrderFolder() (string, error) {
	folder := s.OrderFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create order folder %s: %w", folder, err)
	}
	return folder, nil
}

// logPath returns the order's log file path.
func (s *Store) logPath() string {
	return filepath.Join(s.OrderFolder(), LogName)
}

// Append appends one record to the order log, writing the header line
// first if the log file did not previously exist. The record is considered
// saved once this returns nil.
func (s *Store) Append(rec Record) error {
	if _, err := s.EnsureOrderFolder(); err != nil {
		return err
	}

	path := s.logPath()
	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open order log: %w", err)
	}
	defer f.Close()

	if !existed {
		if _, err := fmt.Fprintln(f, LogHeader); err != nil {
			return fmt.Errorf("failed to write log header: %w", err)
		}
	}
	if _, err := fmt.Fprintf(f, "%s,%s\n", rec.Timestamp, rec.SKU); err != nil {
		return fmt.Errorf("failed to append scan record: %w", err)
	}
	return nil
}

// Replay reads the full order log and returns every record in file order.
// An absent log is an empty history, not an error.
func (s *Store) Replay() ([]Record, error) {
	f, err := os.Open(s.logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open order log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if line == LogHeader {
				continue
			}
		}
		if line == "" {
			continue
		}
		ts, sku, found := strings.Cut(line, ",")
		if !found {
			// Externally modified line, not a scan record.
			continue
		}
		records = append(records, Record{Timestamp: ts, SKU: sku})
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read order log: %w", err)
	}
	return records, nil
}

// SaveImage writes the frame as a JPEG named from the identifier and a
// second-resolution timestamp. The identifier in the name keeps two new
// identifiers saved within the same second from overwriting each other.
func (s *Store) SaveImage(sku string, frame gocv.Mat) (string, error) {
	folder, err := s.EnsureOrderFolder()
	if err != nil {
		return "", err
	}

	path := filepath.Join(folder, ImageName(sku, time.Now()))
	if ok := gocv.IMWrite(path, frame); !ok {
		return "", fmt.Errorf("failed to write image %s", path)
	}
	return path, nil
}

// ImageName builds the image file name for an identifier and timestamp.
func ImageName(sku string, ts time.Time) string {
	return fmt.Sprintf("%s_%s.jpg", sku, ts.Format(TimeLayout))
}

// Now returns the current time formatted with TimeLayout.
func Now() string {
	return time.Now().Format(TimeLayout)
}
