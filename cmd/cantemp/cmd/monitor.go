package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cantemp"
	"cantemp/pkg/analyze"
	"cantemp/pkg/journal"
	"cantemp/pkg/mqtt"
)

const (
	flagRaw             = "raw"
	flagSummaryInterval = "summary"
	flagJournal         = "journal"
	flagBroker          = "broker"
	flagTopic           = "topic"
	flagDepth           = "depth"
	flagCapacity        = "capacity"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor the bus and flag temperature candidates",
	Long: `Tracks byte-level changes per identifier and prints an analysis line
for every candidate frame whose payload changed, listing the plausible
decodings of each changed byte. Change HVAC settings in the vehicle and
watch which bytes follow.`,
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.Bool(flagRaw, false, "print every received frame")
	f.Duration(flagSummaryInterval, 30*time.Second, "interval between activity summaries, 0 = only on exit")
	f.String(flagJournal, "", "journal candidate sightings to this bbolt database")
	f.String(flagBroker, "", "publish candidate reports to this MQTT broker")
	f.String(flagTopic, mqtt.DefaultTopic, "MQTT topic for candidate reports")
	f.Int(flagDepth, 0, "history depth per identifier (0 = default)")
	f.Int(flagCapacity, 0, "max tracked identifiers (0 = default)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client, err := openClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	an, err := newAnalyzer(cmd)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := openSinks(cmd)
	if err != nil {
		return err
	}
	defer closeSinks()

	raw, _ := cmd.Flags().GetBool(flagRaw)
	summaryInterval, _ := cmd.Flags().GetDuration(flagSummaryInterval)

	var summaryChan <-chan time.Time
	if summaryInterval > 0 {
		ticker := time.NewTicker(summaryInterval)
		defer ticker.Stop()
		summaryChan = ticker.C
	}

	sub := client.Subscribe(ctx)
	defer sub.Close()

	log.Println("monitoring, change HVAC settings and watch for patterns")
	for {
		select {
		case <-ctx.Done():
			printSummary(an)
			return nil
		case err := <-client.Err():
			if err == nil {
				continue
			}
			if !cantemp.IsRecoverable(err) {
				printSummary(an)
				log.Printf("adapter: %v", err)
				return nil
			}
			log.Printf("adapter: %v", err)
		case <-summaryChan:
			printSummary(an)
		case frame, ok := <-sub.Chan():
			if !ok {
				printSummary(an)
				return nil
			}
			handleFrame(an, sinks, frame, raw)
		}
	}
}

type sinkSet struct {
	journal   *journal.Journal
	publisher *mqtt.Publisher
}

func openSinks(cmd *cobra.Command) (*sinkSet, func(), error) {
	var s sinkSet
	closeAll := func() {
		if s.journal != nil {
			s.journal.Close()
		}
		if s.publisher != nil {
			s.publisher.Disconnect()
		}
	}

	if path, _ := cmd.Flags().GetString(flagJournal); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return nil, nil, err
		}
		s.journal = j
	}
	if broker, _ := cmd.Flags().GetString(flagBroker); broker != "" {
		topic, _ := cmd.Flags().GetString(flagTopic)
		p := mqtt.NewPublisher(mqtt.Config{Broker: broker, Topic: topic})
		if err := p.Connect(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		s.publisher = p
	}
	return &s, closeAll, nil
}

func newAnalyzer(cmd *cobra.Command) (*analyze.Analyzer, error) {
	cfg := analyze.DefaultConfig()
	depth, err := cmd.Flags().GetInt(flagDepth)
	if err != nil {
		return nil, err
	}
	capacity, err := cmd.Flags().GetInt(flagCapacity)
	if err != nil {
		return nil, err
	}
	cfg.HistoryDepth = depth
	cfg.HistoryCapacity = capacity
	return analyze.New(cfg), nil
}

func handleFrame(an *analyze.Analyzer, sinks *sinkSet, frame *cantemp.Frame, raw bool) {
	rep := an.Analyze(frame)
	if raw {
		tag := ""
		if rep.Candidate {
			tag = " [TEMP?]"
		}
		fmt.Println(frame.ColorString() + tag)
	}
	if !rep.Candidate || len(rep.Changed) == 0 {
		return
	}

	fmt.Println(rep.ColorString())
	if sinks.journal != nil {
		if err := sinks.journal.Record(rep, frame.Data, frame.Timestamp); err != nil {
			log.Printf("journal: %v", err)
		}
	}
	if sinks.publisher != nil {
		sinks.publisher.Publish(rep, frame.Timestamp)
	}
}

func printSummary(an *analyze.Analyzer) {
	sum := an.Summary()
	if len(sum) == 0 {
		log.Println("no identifiers tracked yet")
		return
	}
	color.New(color.FgHiGreen).Println(analyze.RenderSummary(sum))
}
