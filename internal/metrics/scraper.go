package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Status is a running scheduler's state as read from its metrics endpoint.
type Status struct {
	Tag     string
	RunID   string
	Version string

	ActiveSlots  int
	MaxActive    int
	OrphanGroups int
	Elapsed      time.Duration
	LastSignal   int

	TestsStarted  int64
	StartFailures int64
	Results       map[string]int64
}

// StatusScraper reads Status from a scheduler's /metrics endpoint.
type StatusScraper struct {
	url        string
	httpClient *http.Client
}

// NewStatusScraper creates a scraper for url.
func NewStatusScraper(url string, timeout time.Duration) *StatusScraper {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StatusScraper{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Scrape fetches and decodes one Status.
func (s *StatusScraper) Scrape(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	families, err := decodeFamilies(resp.Body)
	if err != nil {
		return nil, err
	}
	return statusFromFamilies(families), nil
}

// decodeFamilies parses the Prometheus text format.
func decodeFamilies(r io.Reader) (map[string]*dto.MetricFamily, error) {
	decoder := expfmt.NewDecoder(r, expfmt.FmtText)
	parsed := make(map[string]*dto.MetricFamily)

	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		parsed[mf.GetName()] = &mf
	}
	return parsed, nil
}

func statusFromFamilies(families map[string]*dto.MetricFamily) *Status {
	st := &Status{
		ActiveSlots:   int(gaugeValue(families, namespace+"_active_slots")),
		MaxActive:     int(gaugeValue(families, namespace+"_max_active_slots")),
		OrphanGroups:  int(gaugeValue(families, namespace+"_orphan_groups")),
		LastSignal:    int(gaugeValue(families, namespace+"_last_signal")),
		Elapsed:       time.Duration(gaugeValue(families, namespace+"_elapsed_seconds") * float64(time.Second)),
		TestsStarted:  int64(counterValue(families, namespace+"_tests_started_total")),
		StartFailures: int64(counterValue(families, namespace+"_start_failures_total")),
		Results:       make(map[string]int64),
	}

	if mf, ok := families[namespace+"_info"]; ok {
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				switch label.GetName() {
				case "tag":
					st.Tag = label.GetValue()
				case "run_id":
					st.RunID = label.GetValue()
				case "version":
					st.Version = label.GetValue()
				}
			}
		}
	}

	if mf, ok := families[namespace+"_test_results_total"]; ok {
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "verdict" {
					st.Results[label.GetValue()] += int64(m.GetCounter().GetValue())
				}
			}
		}
	}
	return st
}

func gaugeValue(families map[string]*dto.MetricFamily, name string) float64 {
	mf, ok := families[name]
	if !ok || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func counterValue(families map[string]*dto.MetricFamily, name string) float64 {
	mf, ok := families[name]
	if !ok {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}
