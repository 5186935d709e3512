package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gemwallet/internal/page"
	"gemwallet/internal/protocol"
	"gemwallet/internal/transport"
	"gemwallet/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	endpoint string
	origin   string
)

// pageCmd 以页面身份连接 gem-server 的 /ws
var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "以 dApp 页面身份向钱包发起请求",
	Long: `通过 websocket 连接 gem-server，行为与注入了扩展的网页相同：
请求会出现在确认页，用户确认或拒绝后这里才会返回。`,
}

// withClient 建立连接并在 fn 返回后断开
func withClient(ctx context.Context, fn func(ctx context.Context, c *page.Client) error) error {
	info := protocol.ConnectionInfo{URL: origin, Title: "gem-cli"}
	win, err := transport.Dial(ctx, endpoint, origin, info)
	if err != nil {
		return err
	}
	defer win.Close()
	go func() { _ = win.Run() }()

	c := page.NewClient(win, page.NewConnectionState(true), page.WithLogger(logger.Named("page")))
	return fn(ctx, c)
}

var pageProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "检查钱包是否可用",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *page.Client) error {
			if !c.IsConnected(ctx) {
				return fmt.Errorf("钱包没有响应")
			}
			n, err := c.GetNetwork(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 已连接: %s %s (NetworkID %d)\n", n.Chain, n.Network, n.NetworkID)
			return nil
		})
	},
}

var pageAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "请求当前钱包地址 (需要在确认页同意)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *page.Client) error {
			addr, err := c.GetAddress(ctx)
			if err != nil {
				return err
			}
			fmt.Println(addr)
			return nil
		})
	},
}

var pageSignCmd = &cobra.Command{
	Use:   "sign-message <message>",
	Short: "请求签名一条消息",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *page.Client) error {
			sig, err := c.SignMessage(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(sig)
			return nil
		})
	},
}

var pagePayCmd = &cobra.Command{
	Use:   "pay <destination> <drops>",
	Short: "请求发送 XRP 支付",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetUint32("tag")
		req := protocol.PaymentRequest{Amount: protocol.XRP(args[1]), Destination: args[0]}
		if cmd.Flags().Changed("tag") {
			req.DestinationTag = &tag
		}
		return withClient(cmd.Context(), func(ctx context.Context, c *page.Client) error {
			hash, err := c.SendPayment(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 交易已确认: %s\n", hash)
			return nil
		})
	},
}

var pageSubmitCmd = &cobra.Command{
	Use:   "submit <tx.json>",
	Short: "提交任意交易 JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取交易文件失败: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("%s 不是合法的 JSON", args[0])
		}
		return withClient(cmd.Context(), func(ctx context.Context, c *page.Client) error {
			hash, err := c.SubmitTransaction(ctx, data)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 交易已确认: %s\n", hash)
			return nil
		})
	},
}

func init() {
	pageCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "ws://localhost:8080/ws", "gem-server 的 websocket 地址")
	pageCmd.PersistentFlags().StringVar(&origin, "origin", "http://localhost", "页面 origin")
	pagePayCmd.Flags().Uint32("tag", 0, "Destination tag")

	pageCmd.AddCommand(pageProbeCmd, pageAddressCmd, pageSignCmd, pagePayCmd, pageSubmitCmd)
	rootCmd.AddCommand(pageCmd)
}
