package cmd

import (
	"fmt"
	"strconv"

	"GuildFM/core/source"
	"GuildFM/storage"

	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "列出 MinIO 曲库",
	Long:  `列出存储桶中的音频文件，每个文件都可以用 minio://<key> 直接点播。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.MinioEnabled() {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_ACCESS_KEY are required")
		}
		store, err := storage.NewObjectStore(cfg)
		if err != nil {
			return err
		}
		if err := store.CheckBucket(cmd.Context()); err != nil {
			return err
		}

		objects, stats, err := store.ListObjects(cmd.Context(), minioPrefix)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(objects))
		for i, obj := range objects {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				source.ObjectScheme + "://" + obj.Key,
				storage.FormatSize(obj.Size),
				obj.LastModified.Format("2006-01-02 15:04"),
			})
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderTable([]string{"#", "Locator", "Size", "Modified"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
		fmt.Fprintf(out, "存储桶 %s: %d 个音频文件, 共 %s\n", store.Bucket(), stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "只列出该前缀下的文件")
	rootCmd.AddCommand(minioCmd)
}
