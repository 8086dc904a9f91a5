package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type testCase struct {
	Name     string          `json:"name"`
	Critical bool            `json:"critical"`
	Payload  json.RawMessage `json:"payload"`
}

type caseFile struct {
	Cases []testCase `json:"cases"`
}

type outcome struct {
	Case      testCase
	Statuses  []int
	Stable    bool
	Error     error
	Durations []time.Duration
}

func main() {
	var (
		base      string
		casesPath string
		runs      int
		timeout   time.Duration
		token     string
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "Timetable API base URL")
	flag.StringVar(&casesPath, "cases", filepath.Join("scripts", "determinism_check", "cases.json"), "Path to JSON cases file")
	flag.IntVar(&runs, "runs", 3, "Requests per case")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "HTTP client timeout")
	flag.StringVar(&token, "token", os.Getenv("TIMETABLE_TOKEN"), "Bearer token when auth is enabled")
	flag.Parse()

	if runs < 2 {
		log.Fatalf("runs must be at least 2, got %d", runs)
	}
	cases, err := loadCases(casesPath)
	if err != nil {
		log.Fatalf("failed to load cases: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		outcomes []outcome
		breaking int
		optional int
	)
	for _, tc := range cases {
		res := checkCase(client, base, token, tc, runs)
		if res.Error != nil || !res.Stable {
			if tc.Critical {
				breaking++
			} else {
				optional++
			}
		}
		outcomes = append(outcomes, res)
	}

	printReport(outcomes)

	fmt.Printf("Unstable critical cases: %d, unstable optional cases: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadCases(path string) ([]testCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file caseFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("no cases defined in %s", path)
	}
	return file.Cases, nil
}

// checkCase posts the same payload runs times and requires identical
// statuses and identical data/error sections.
func checkCase(client *http.Client, base, token string, tc testCase, runs int) outcome {
	res := outcome{Case: tc, Stable: true}
	var first interface{}
	for i := 0; i < runs; i++ {
		status, body, dur, err := generate(client, base, token, tc.Payload)
		if err != nil {
			res.Error = fmt.Errorf("run %d: %w", i+1, err)
			res.Stable = false
			return res
		}
		res.Statuses = append(res.Statuses, status)
		res.Durations = append(res.Durations, dur)

		stripped, err := stripMeta(body)
		if err != nil {
			res.Error = fmt.Errorf("run %d: %w", i+1, err)
			res.Stable = false
			return res
		}
		if i == 0 {
			first = stripped
			continue
		}
		if status != res.Statuses[0] || !reflect.DeepEqual(first, stripped) {
			res.Stable = false
		}
	}
	return res
}

func generate(client *http.Client, base, token string, payload []byte) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	url := strings.TrimRight(base, "/") + "/timetables/generate"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// stripMeta drops the per-request meta block (timing, cache flag).
func stripMeta(body []byte) (interface{}, error) {
	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	delete(envelope, "meta")
	return envelope, nil
}

func printReport(outcomes []outcome) {
	fmt.Println("Case\tRuns\tStatus\tStable\tSlowest(ms)\tError")
	for _, o := range outcomes {
		status := "-"
		if len(o.Statuses) > 0 {
			status = fmt.Sprintf("%d", o.Statuses[0])
		}
		var slowest time.Duration
		for _, d := range o.Durations {
			if d > slowest {
				slowest = d
			}
		}
		errMsg := ""
		if o.Error != nil {
			errMsg = o.Error.Error()
		}
		fmt.Printf("%s\t%d\t%s\t%t\t%d\t%s\n",
			o.Case.Name,
			len(o.Statuses),
			status,
			o.Stable,
			slowest.Milliseconds(),
			errMsg,
		)
	}
}
