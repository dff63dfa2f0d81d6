package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

const serviceName = "cloudsync-directory"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line logger. Output is one JSON object per line
// on stdout; the process never logs anywhere else.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits one JSON line for an HTTP request. Every line carries the
// service name so aggregated logs can be filtered without relying on the
// collector to tag the source.
func LogRequest(entry map[string]any) {
	Logger().Println(encodeEntry(entry))
}

func encodeEntry(entry map[string]any) string {
	if _, ok := entry["service"]; !ok {
		entry["service"] = serviceName
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return `{"service":"` + serviceName + `","level":"error","msg":"log marshal failed"}`
	}
	return string(data)
}
