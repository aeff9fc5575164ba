package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/igor-ci/igor/pkg/client"
	"github.com/igor-ci/igor/pkg/order"
	"github.com/igor-ci/igor/pkg/protocol"
)

// orderFile is the YAML shape accepted by `igor order create -f`.
type orderFile struct {
	Desc       string            `yaml:"desc"`
	SpecURI    string            `yaml:"spec_uri"`
	SpecRef    string            `yaml:"spec_ref"`
	SourceURI  string            `yaml:"source_uri"`
	SourceArgs []string          `yaml:"source_args"`
	Env        map[string]string `yaml:"env"`
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Manage build orders",
}

var orderCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a build order",
	Long: `Create a build order from a YAML file and submit it to the server.
The command waits for the OrderCreated event and prints the order id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")

		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		var of orderFile
		if err := yaml.Unmarshal(data, &of); err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		o := order.New(of.Desc, of.SpecURI, of.SpecRef, of.SourceURI, of.SourceArgs, of.Env)

		c, err := client.NewClient(net.JoinHostPort(host, fmt.Sprint(port)))
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Subscribe([]string{protocol.EventOrderCreated}); err != nil {
			return err
		}
		if err := c.CreateOrder(o); err != nil {
			return err
		}
		for {
			frame, err := c.Next(10 * time.Second)
			if err != nil {
				return err
			}
			if frame["event"] == protocol.EventOrderCreated {
				fmt.Println(o.ID)
				return nil
			}
		}
	},
}

func init() {
	orderCreateCmd.Flags().StringP("file", "f", "", "Order description YAML file")
	orderCreateCmd.Flags().String("host", "localhost", "Hostname of the igor server")
	orderCreateCmd.Flags().Int("port", protocol.DefaultPort, "Port of the igor server")
	orderCreateCmd.MarkFlagRequired("file")

	orderCmd.AddCommand(orderCreateCmd)
}
