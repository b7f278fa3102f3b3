package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snailbrainx/openai-realtime-go/pkg/audio/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List host audio devices",
	Long:  `List the input and output audio devices PortAudio can see, for use with --input-device and --output-device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := device.Initialize(); err != nil {
			return err
		}
		defer device.Terminate()

		devices, err := device.List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tINPUTS\tOUTPUTS\tDEFAULT RATE")
		for _, d := range devices {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.0f\n", d.Index, d.Name, d.MaxInputs, d.MaxOutputs, d.DefaultSampleRate)
		}
		return w.Flush()
	},
}
