package main

import (
	"fmt"
	"sort"
	"strings"

	"clicker/internal/game"
	"clicker/internal/save"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func renderState(id uuid.UUID, d *game.GameData) {
	accent.Printf("\n== GAME %s ==\n", id)
	names := make([]string, 0, len(d.Currencies))
	for name := range d.Currencies {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-12s %s\n", strings.ToUpper(name), success.Sprint(formatAmount(d.Currencies[game.CurrencyName(name)])))
	}
	fmt.Printf("%-12s x%s\n", "MULT", formatAmount(d.Mult))
	fmt.Printf("%-12s %dms\n", "TICK", d.Time)
	fmt.Printf("%-12s autosave=%s offline=%s\n", "SETTINGS", onOff(d.Settings.Autosave), onOff(d.Settings.OfflineProgress))
	fmt.Println()
}

func renderUpgrades(views []game.UpgradeView) {
	accent.Println("\n== UPGRADES ==")
	if len(views) == 0 {
		printInfo("No upgrades defined.")
		return
	}
	fmt.Printf("%-16s %-8s %18s %10s\n", "UPGRADE", "CURRENCY", "COST", "BOUGHT")
	for _, v := range views {
		cost := formatAmount(v.Cost)
		if v.Affordable {
			cost = success.Sprint(cost)
		} else {
			cost = danger.Sprint(cost)
		}
		fmt.Printf("%-16s %-8s %18s %10s\n", truncate(string(v.Name), 16), v.Currency, cost, formatAmount(v.TimesBought))
	}
	fmt.Println()
}

func renderReceipt(r game.Receipt) {
	printSuccess(fmt.Sprintf("Bought %s for %s %s (owned %s).", r.Upgrade, formatAmount(r.Paid), r.Currency, formatAmount(r.TimesBought)))
	printInfo(fmt.Sprintf("Balance: %s %s, next cost: %s", formatAmount(r.Balance), r.Currency, formatAmount(r.NextCost)))
}

func renderTick(res game.TickResult) {
	if res.Ticks == 0 {
		printInfo("No full tick elapsed yet.")
		return
	}
	printSuccess(fmt.Sprintf("+%s %s over %d ticks (balance %s).", formatAmount(res.Earned), res.Currency, res.Ticks, formatAmount(res.Balance)))
}

func renderSaves(metas []save.Meta, current uuid.UUID) {
	accent.Println("\n== SAVES ==")
	if len(metas) == 0 {
		printInfo("No saves yet. Run `clk new`.")
		return
	}
	fmt.Printf("  %-36s %-8s %s\n", "ID", "VERSION", "UPDATED")
	for _, m := range metas {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		fmt.Printf("%s %-36s v%-7d %s\n", marker, m.ID, m.Version, m.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
}

// formatAmount prints integers with thousands separators and keeps up to two
// decimals otherwise.
func formatAmount(v game.Amount) string {
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	whole := v.Truncate(0)
	frac := v.Sub(whole)
	out := sign + comma(whole.String())
	if !frac.IsZero() {
		out += strings.TrimPrefix(frac.StringFixed(2), "0")
	}
	return out
}

func comma(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func parseOnOff(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", v)
	}
}
