package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fleetobserver/fleetobserver/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("fleetobserver doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Server:")
	fmt.Printf("    %-16s %s:%d\n", "Listen:", cfg.Server.Host, cfg.Server.Port)
	if cfg.Server.StaticDir != "" {
		fmt.Printf("    %-16s %s", "Static dir:", cfg.Server.StaticDir)
		if _, err := os.Stat(cfg.Server.StaticDir); err != nil {
			fmt.Println(" (NOT FOUND)")
		} else {
			fmt.Println(" (OK)")
		}
	}

	fmt.Println()
	fmt.Println("  Session base paths:")
	for _, p := range cfg.Sessions.BasePaths {
		status := "OK"
		if _, err := os.Stat(p); err != nil {
			status = "NOT FOUND"
		}
		fmt.Printf("    %-40s %s\n", p, status)
	}

	fmt.Println()
	fmt.Println("  Agent binary:")
	if path, err := exec.LookPath(cfg.Agent.BinaryPath); err != nil {
		fmt.Printf("    %-16s %s (NOT FOUND ON PATH)\n", "Binary:", cfg.Agent.BinaryPath)
	} else {
		fmt.Printf("    %-16s %s\n", "Binary:", path)
	}

	fmt.Println()
	fmt.Println("  Summary cache:")
	if cfg.Cache.Enabled {
		fmt.Printf("    %-16s %s\n", "Path:", cfg.Cache.Path)
	} else {
		fmt.Printf("    %-16s disabled (set FLEET_SUMMARY_CACHE=1 to enable)\n", "Status:")
	}
}
