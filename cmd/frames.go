package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ftl/replayscope/dsp"
	"github.com/ftl/replayscope/scope"
)

var framesFlags = struct {
	address string
}{}

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "print the frames of a running replayscope scope server",
	Run:   runWithCtx(runFrames),
}

func init() {
	rootCmd.AddCommand(framesCmd)

	framesCmd.Flags().StringVar(&framesFlags.address, "address", "localhost:35369", "the address of the scope server")
}

func runFrames(ctx context.Context, cmd *cobra.Command, args []string) {
	client := scope.NewClient(framesFlags.address)
	err := client.Open()
	if err != nil {
		fatal(err)
	}
	defer client.Close()

	err = client.Forward(ctx, &framePrinter{out: os.Stdout})
	if err != nil {
		fatal(err)
	}
}

// framePrinter writes one summary line per frame.
type framePrinter struct {
	out io.Writer
}

func (p *framePrinter) ShowTimeFrame(frame *scope.TimeFrame) {
	fmt.Fprintf(p.out, "%s %-16s time      %d lines of %d samples, %v, y %.3f..%.3f\n",
		frame.Timestamp.Format("15:04:05.000"), frame.Stream, len(frame.Lines), lineLength(frame.Lines), frame.Duration, frame.YMin, frame.YMax)
}

func (p *framePrinter) ShowSpectralFrame(frame *scope.SpectralFrame) {
	p.printSpectrum("frequency", frame.Frame, frame.FromFrequency, frame.ToFrequency, frame.Values)
}

func (p *framePrinter) ShowWaterfallFrame(frame *scope.WaterfallFrame) {
	p.printSpectrum("waterfall", frame.Frame, frame.FromFrequency, frame.ToFrequency, frame.Values)
}

func (p *framePrinter) printSpectrum(kind string, frame scope.Frame, fromFrequency, toFrequency float64, values []float64) {
	fmt.Fprintf(p.out, "%s %-16s %-9s %d bins, %.0f..%.0f Hz",
		frame.Timestamp.Format("15:04:05.000"), frame.Stream, kind, len(values), fromFrequency, toFrequency)
	if len(values) == 0 {
		fmt.Fprintln(p.out)
		return
	}

	block := dsp.Block[float64](values)
	peakValue, peakBin := block.Max(0, len(values)-1)
	floor, _ := block.Min(0, len(values)-1)
	mapping := dsp.NewFrequencyMapping(int(toFrequency-fromFrequency), len(values), (fromFrequency+toFrequency)/2)
	fmt.Fprintf(p.out, ", peak %.1f dB at %.0f Hz, floor %.1f dB\n", peakValue, mapping.BinToFrequency(peakBin, dsp.BinCenter), floor)
}

func lineLength(lines [][]float64) int {
	if len(lines) == 0 {
		return 0
	}
	return len(lines[0])
}
