package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	var setList string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Get or set the running instance's allowed_tools list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if setList == "" {
				return getAllowedTools(globalConfig.ListenAddr())
			}
			names := strings.Split(setList, ",")
			for i := range names {
				names[i] = strings.TrimSpace(names[i])
			}
			return setAllowedTools(globalConfig.ListenAddr(), names)
		},
	}
	cmd.Flags().StringVar(&setList, "set", "", "comma-separated tool names to install as the new allowlist")
	return cmd
}

func getAllowedTools(listenAddr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(panelURL(listenAddr) + "allowed_tools")
	if err != nil {
		return fmt.Errorf("request /allowed_tools: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read /allowed_tools response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("/allowed_tools returned %s: %s", resp.Status, body)
	}
	fmt.Println(string(body))
	return nil
}

func setAllowedTools(listenAddr string, tools []string) error {
	payload, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("marshal tool list: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(panelURL(listenAddr)+"allowed_tools", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post /allowed_tools: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read /allowed_tools response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("/allowed_tools returned %s: %s", resp.Status, body)
	}
	fmt.Println(string(body))
	return nil
}
