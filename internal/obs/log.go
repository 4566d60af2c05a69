package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	once sync.Once
	line *log.Logger
)

// Logger returns the process-wide stdout logger. Every line it emits is a
// single JSON object; timestamps and levels travel inside the payload, not
// in a prefix.
func Logger() *log.Logger {
	once.Do(func() {
		line = log.New(os.Stdout, "", 0)
	})
	return line
}

// LogRequest renders entry as one JSON log line. A marshal failure degrades
// to a fixed error line.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
