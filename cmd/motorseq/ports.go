package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/motorseq/controller"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	RunE: func(_ *cobra.Command, _ []string) error {
		ports, err := controller.GetSerialPorts()
		if errors.Is(err, controller.ErrNoUSBSerial) {
			fmt.Println("no serial ports found")
			return nil
		}
		if err != nil {
			return err
		}

		for _, port := range ports {
			fmt.Println(port)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
