package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type counterResponse struct {
	Count int64 `json:"count"`
}

func main() {
	var (
		addr   = flag.String("addr", "http://localhost:8080", "lolcounter http address")
		amount = flag.Int64("amount", 0, "increment amount, increments by one when zero")
		repeat = flag.Int("repeat", 1, "number of calls")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] get|increment\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command != "get" && command != "increment" {
		flag.Usage()
		os.Exit(2)
	}

	client := newClient(command)
	base := strings.TrimRight(*addr, "/")
	for i := 0; i < *repeat; i++ {
		count, err := MakeCall(client, base, command, *amount)
		if err != nil {
			log.Fatalf("%s failed: %s", command, err)
		}
		fmt.Println(count)
	}
}

// newClient retries reads only. A failed increment may still have been
// counted, so it is never sent twice.
func newClient(command string) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryMax = 2
	if command == "increment" {
		client.RetryMax = 0
	}

	return client
}

func MakeCall(client *retryablehttp.Client, base, command string, amount int64) (int64, error) {
	defer func(begin time.Time) {
		fmt.Fprintln(os.Stderr, "took > ", time.Since(begin))
	}(time.Now())

	var (
		req *retryablehttp.Request
		err error
	)
	switch command {
	case "get":
		req, err = retryablehttp.NewRequest(http.MethodGet, base+"/api/counter", nil)
	default:
		var body []byte
		if amount != 0 {
			body, _ = json.Marshal(map[string]int64{"amount": amount})
		}
		req, err = retryablehttp.NewRequest(http.MethodPost, base+"/api/counter/increment", bytes.NewReader(body))
	}
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var res counterResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.Count, nil
}
