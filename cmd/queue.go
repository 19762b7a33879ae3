package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"GuildFM/model"

	"github.com/spf13/cobra"
)

var (
	queueGuild string
	queueToken string
	queueAPI   string
)

// fetchSnapshot reads a guild's queue from the control API.
func fetchSnapshot(ctx context.Context, baseURL, token, guildID string) (*model.QueueSnapshot, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/api/guilds/" + url.PathEscape(guildID) + "/queue"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request queue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("control API returned %s: %s", resp.Status, body.Error)
	}

	var snap model.QueueSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return &snap, nil
}

func renderSnapshot(snap *model.QueueSnapshot) string {
	var b strings.Builder
	if snap.CurrentTrack != nil {
		fmt.Fprintf(&b, "Now playing: %s (%s)\n", snap.CurrentTrack.DisplayName(), snap.State)
	} else {
		fmt.Fprintf(&b, "Nothing is playing (%s)\n", snap.State)
	}

	rows := make([][]string, 0, len(snap.Queue))
	for i, t := range snap.Queue {
		rows = append(rows, []string{strconv.Itoa(i + 1), t.Title, t.Artist, t.RequestedBy})
	}
	b.WriteString(renderTable([]string{"#", "Title", "Artist", "Requested By"}, rows,
		[]columnAlignment{alignRight}))
	return b.String()
}

func defaultAPIURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "查看服务器的播放队列",
	Long:  `通过控制 API 读取某个 Discord 服务器的当前曲目和队列。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if queueAPI == "" {
			queueAPI = defaultAPIURL(cfg.HTTPAddr)
		}
		snap, err := fetchSnapshot(cmd.Context(), queueAPI, queueToken, queueGuild)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderSnapshot(snap))
		return nil
	},
}

func init() {
	queueCmd.Flags().StringVarP(&queueGuild, "guild", "g", "", "Discord 服务器 ID")
	queueCmd.Flags().StringVarP(&queueToken, "token", "t", "", "控制 API 的 bearer token")
	queueCmd.Flags().StringVar(&queueAPI, "api", "", "控制 API 地址，默认取 HTTP_ADDR")
	_ = queueCmd.MarkFlagRequired("guild")
	_ = queueCmd.MarkFlagRequired("token")
	rootCmd.AddCommand(queueCmd)
}
