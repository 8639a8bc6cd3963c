package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/apsmon/internal/aggregate"
	"github.com/lox/apsmon/internal/config"
	"github.com/lox/apsmon/internal/gateway"
	"github.com/lox/apsmon/internal/httputil"
	"github.com/lox/apsmon/internal/models"
	"github.com/lox/apsmon/internal/pvoutput"
	"github.com/lox/apsmon/internal/report"
)

var cli struct {
	Config    string `help:"Path to the JSON config file." default:"config.json" env:"APSMON_CONFIG"`
	JSON      bool   `help:"Emit one JSON document instead of the text summary."`
	NoPublish bool   `help:"Skip the PVOutput upload even when configured."`
	LogLevel  string `help:"Diagnostic log level (debug, info, warn, error)." default:"info" env:"APSMON_LOG_LEVEL"`
}

const (
	exitOK       = 0
	exitConfig   = 1
	exitReadPath = 2
	exitPublish  = 4
)

func main() {
	kong.Parse(&cli,
		kong.Name("apsmon"),
		kong.Description("Read per-panel data from an APS inverter gateway and optionally publish to PVOutput."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	logrus.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(cli.LogLevel)
	if err != nil {
		logrus.Errorf("invalid log level %q", cli.LogLevel)
		os.Exit(exitConfig)
	}
	logrus.SetLevel(lvl)

	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		logrus.Error(err)
		return exitConfig
	}

	client := gateway.NewClient(cfg.URL(), httputil.NewClient(cfg.Timeout()))
	logrus.WithField("url", cfg.URL()).Debug("fetching gateway page")
	markup, err := client.Fetch(ctx)
	if err != nil {
		logrus.Error(err)
		return exitReadPath
	}

	set, err := gateway.Parse(markup)
	if err != nil {
		logrus.Error(err)
		return exitReadPath
	}

	res := aggregate.New(cfg.ScaleMissing, cfg.ExpectedCount).Aggregate(set)

	if cli.JSON {
		out, err := report.NewDocument(cfg.URL(), set, res).Encode()
		if err != nil {
			logrus.Errorf("encode report: %v", err)
			return exitReadPath
		}
		fmt.Println(out)
	} else {
		report.WriteText(os.Stdout, cfg.URL(), set, res)
	}

	return publish(ctx, cfg, res)
}

// publish runs after the local report so an upload failure never
// discards already-computed readings.
func publish(ctx context.Context, cfg *config.Config, res models.AggregateResult) int {
	if !cfg.PVOutput.Publish || cli.NoPublish {
		if !cli.JSON {
			fmt.Println("\nPublishing skipped.")
		}
		logrus.Debug("publishing skipped")
		return exitOK
	}

	pv := pvoutput.NewClient(cfg.PVOutput.APIKey, cfg.PVOutput.SystemID, httputil.NewClient(pvoutput.DefaultTimeout))
	st := pvoutput.Status{
		Watts:     res.TotalWattsForOutput,
		AvgVolt:   res.AvgVolt,
		AvgTempC:  res.AvgTempC,
		AvgFreqHz: res.AvgFreqHz,
	}
	opts := pvoutput.Options{
		SendVoltage: cfg.PVOutput.SendVoltage,
		SendTemp:    cfg.PVOutput.SendTemp,
		SendFreq:    cfg.PVOutput.SendFreq,
		FreqField:   cfg.PVOutput.FreqField,
	}

	status, err := pv.AddStatus(ctx, st, opts)
	if err != nil {
		logrus.Errorf("publish to pvoutput failed: %v", err)
		if !cli.JSON {
			fmt.Printf("\nPVOutput publish failed: %v\n", err)
		}
		return exitPublish
	}

	if !cli.JSON {
		fmt.Printf("\nPVOutput response: %s\n", status)
	}
	logrus.WithField("response", status).Debug("published to pvoutput")
	return exitOK
}
