package cmd

import (
	"fmt"

	"gemwallet/internal/network"

	"github.com/spf13/cobra"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "查看或切换网络",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openNetworks(cmd.Context())
		if err != nil {
			return err
		}
		current := store.Current()
		for _, n := range network.Presets() {
			mark := " "
			if n.Name == current.Name {
				mark = "*"
			}
			fmt.Printf("%s %-14s %-6s %-8s %s\n", mark, n.Name, n.Chain, n.Label, n.RPC)
		}
		if current.Name == network.Custom {
			fmt.Printf("* %-14s %-6s %-8s %s\n", current.Name, current.Chain, current.Label, current.RPC)
		}
		return nil
	},
}

var networkSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "切换网络 (custom 需要 --url)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		store, err := openNetworks(cmd.Context())
		if err != nil {
			return err
		}
		n, err := store.Select(cmd.Context(), args[0], url)
		if err != nil {
			return err
		}
		fmt.Printf("✅ 当前网络: %s (%s %s)\n", n.Name, n.Chain, n.RPC)
		return nil
	},
}

func init() {
	networkSetCmd.Flags().String("url", "", "自定义节点的 JSON-RPC 地址")
	networkCmd.AddCommand(networkSetCmd)
	rootCmd.AddCommand(networkCmd)
}
