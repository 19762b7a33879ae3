package cmd

import (
	"fmt"

	"GuildFM/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，进行基本读写操作，并统计解析缓存中的条目数。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Redis配置: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer cache.CloseRedis()
		fmt.Fprintln(out, "Redis连接成功！")

		if err := cache.TestRedis(cmd.Context()); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Fprintln(out, "Redis基本操作测试成功！")

		n, err := cache.NewRedisResolutionCache(client).Len(cmd.Context())
		if err != nil {
			return fmt.Errorf("统计解析缓存失败: %w", err)
		}
		fmt.Fprintf(out, "解析缓存条目数: %d\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
