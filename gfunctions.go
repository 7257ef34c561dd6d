package cloudcheckin

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/J-Leg/cloudcheckin/config"
)

// ProcessCheckIn - Daily check-in receptor
func ProcessCheckIn(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	cfg, err := config.InitConfig(r.Context())
	if err != nil {
		log.Printf("error initialising config: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer cfg.Close()

	fmt.Println("~~~~~~~ Execute Daily Check-in ~~~~~~~")
	report := ExecuteCheckIn(cfg)
	fmt.Println("~~~~~~~ Daily Check-in Complete ~~~~~~~")

	executionElapsed := time.Since(start)
	fmt.Printf("Total elapsed (Daily) execution time: %s\n\n", executionElapsed.String())

	if report.Err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
	fmt.Fprintln(w, report.SummaryLine)
}
