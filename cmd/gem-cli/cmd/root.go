package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gemwallet/internal/network"
	"gemwallet/internal/storage"
	"gemwallet/internal/wallet"
	"gemwallet/pkg/keystore"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	dataDir string
	scryptN int
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "gem-cli",
	Short: "GemWallet 命令行工具",
	Long: `管理本地 XRPL 钱包和网络选择，并可以以页面身份连接 gem-server
发起请求 (地址、签名、支付等)。`,
	SilenceUsage: true,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./data", "钱包数据目录 (与 gem-server 的 storage.path 相同)")
	rootCmd.PersistentFlags().IntVar(&scryptN, "scrypt-n", keystore.StandardScryptN, "scrypt 参数 N")
}

func openStore() (storage.Store, error) {
	return storage.NewFileStore(dataDir)
}

// readPassword 从终端读取密码，confirm 时需要输入两次
func readPassword(confirm bool) (string, error) {
	fmt.Print("输入密码: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	password := string(b)
	if !confirm {
		return password, nil
	}

	fmt.Print("确认密码: ")
	b2, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	if password != string(b2) {
		return "", fmt.Errorf("两次输入的密码不一致")
	}
	if len(password) < 8 {
		return "", fmt.Errorf("密码长度至少需要 8 位")
	}
	return password, nil
}

// readSecret 不回显地读取 seed 或助记词
func readSecret() (string, error) {
	fmt.Print("输入 family seed 或助记词: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取密钥失败: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// unlockedProvider 打开存储并解锁钱包
func unlockedProvider(ctx context.Context, confirm bool) (*wallet.Provider, error) {
	kv, err := openStore()
	if err != nil {
		return nil, err
	}
	password, err := readPassword(confirm)
	if err != nil {
		return nil, err
	}
	p := wallet.NewProvider(kv, scryptN, nil)
	if err := p.Unlock(ctx, password); err != nil {
		return nil, err
	}
	return p, nil
}

func printWallets(list []wallet.Summary) {
	if len(list) == 0 {
		fmt.Println("(没有钱包)")
		return
	}
	for _, w := range list {
		mark := " "
		if w.Selected {
			mark = "*"
		}
		kind := "seed"
		if w.HasMnemonic {
			kind = "mnemonic"
		}
		fmt.Printf("%s [%d] %-16s %s (%s, %s)\n", mark, w.Index, w.Name, w.Address, w.Algorithm, kind)
	}
}

func openNetworks(ctx context.Context) (*network.Store, error) {
	kv, err := openStore()
	if err != nil {
		return nil, err
	}
	return network.NewStore(ctx, kv, network.Testnet, "")
}
