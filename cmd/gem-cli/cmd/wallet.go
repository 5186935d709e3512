package cmd

import (
	"fmt"
	"strconv"

	"gemwallet/pkg/xrpkey"

	"github.com/spf13/cobra"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "管理本地钱包",
}

var walletInitCmd = &cobra.Command{
	Use:   "init",
	Short: "生成新的 family seed 钱包并加密保存",
	Long:  `首次运行时设置的密码会用于加密整个钱包列表，之后的操作都需要这个密码。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		algo, _ := cmd.Flags().GetString("algorithm")
		showSeed, _ := cmd.Flags().GetBool("show-seed")

		p, err := unlockedProvider(cmd.Context(), true)
		if err != nil {
			return err
		}
		s, err := p.Create(cmd.Context(), name, xrpkey.Algorithm(algo))
		if err != nil {
			return err
		}
		fmt.Printf("\n✅ 钱包已创建: %s\n", s.Address)
		if showSeed {
			secret, err := p.CurrentSecret()
			if err != nil {
				return err
			}
			fmt.Printf("Family seed: %s\n", secret)
			fmt.Println("⚠️  警告: 请离线保存 seed，任何人拿到它都可以转走资产。")
		}
		return nil
	},
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "导入 family seed 或助记词",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		p, err := unlockedProvider(cmd.Context(), false)
		if err != nil {
			return err
		}
		secret, err := readSecret()
		if err != nil {
			return err
		}
		s, err := p.Import(cmd.Context(), name, secret)
		if err != nil {
			return err
		}
		fmt.Printf("✅ 已导入: %s\n", s.Address)
		return nil
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出钱包",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := unlockedProvider(cmd.Context(), false)
		if err != nil {
			return err
		}
		list, err := p.List()
		if err != nil {
			return err
		}
		printWallets(list)
		return nil
	},
}

var walletSelectCmd = &cobra.Command{
	Use:   "select <index>",
	Short: "切换当前钱包",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("无效的下标 %q", args[0])
		}
		p, err := unlockedProvider(cmd.Context(), false)
		if err != nil {
			return err
		}
		if err := p.Select(cmd.Context(), idx); err != nil {
			return err
		}
		list, err := p.List()
		if err != nil {
			return err
		}
		printWallets(list)
		return nil
	},
}

func init() {
	walletInitCmd.Flags().String("name", "", "钱包名称")
	walletInitCmd.Flags().String("algorithm", string(xrpkey.Secp256k1), "密钥算法: secp256k1 或 ed25519")
	walletInitCmd.Flags().Bool("show-seed", false, "创建后显示 family seed")
	walletImportCmd.Flags().String("name", "", "钱包名称")

	walletCmd.AddCommand(walletInitCmd, walletImportCmd, walletListCmd, walletSelectCmd)
	rootCmd.AddCommand(walletCmd)
}
