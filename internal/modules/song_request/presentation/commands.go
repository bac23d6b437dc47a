package presentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/usecases"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

const (
	// whitelistPreviewSize is the number of names shown by !cat.
	whitelistPreviewSize = 10

	defaultHistoryCount = 5
)

const helpText = `┌──────────────────────
│ [音乐播放控制]
├──────────────────────
│ !pause         - 暂停播放
│ !resume        - 恢复播放
│ !skip          - 跳过当前歌曲
│ !vol <0-100>   - 设置音量
│ !vol           - 查询当前音量
│ !now           - 显示当前播放
│ !history {num} - 显示最近播放

┌──────────────────────
│ [播放队列管理]
├──────────────────────
│ !queue         - 显示当前队列
│ !queue ls      - 显示当前队列
│ !queue add ... - 添加歌曲
│ !queue uadd ...- 使用备用源点歌
│ !queue del N   - 删除第N首
│ !queue clr     - 清除队列

┌──────────────────────
│ [白名单管理]
├──────────────────────
│ !touch user    - 加入白名单
│ !rm user       - 移出白名单
│ !cat           - 查看白名单
│ !clr           - 清空白名单

┌──────────────────────
│ [点歌权限控制]
├──────────────────────
│ !grant         - 开放所有人点歌权限
│ !grant -t SEC  - 开放SEC秒权限
│ !grant -c NUM  - 开放NUM次权限
│ !revoke -c     - 收回次数权限
│ !revoke -t     - 收回时间权限
│ !revoke        - 收回所有权限

┌──────────────────────
│ [其他]
├──────────────────────
│ !stats user    - 查询点歌记录
│ !time          - 获取当前时间
│ !time -h       - 获取当前时间
│ !clock         - 查询计时器超时参数
│ !clock {num}   - 设置计时器超时参数
│ !help          - 显示本帮助

 点歌：song name / id  - 点播歌曲`

// CommandRouter executes admin "!" commands and renders their replies.
// Callers must check that the sender is an admin.
type CommandRouter struct {
	permissions *usecases.PermissionService
	adminKey    *usecases.AdminKeyService
	requests    *usecases.RequestService
	queue       *usecases.QueueService
	player      *usecases.Orchestrator
}

// NewCommandRouter creates a new CommandRouter.
func NewCommandRouter(
	permissions *usecases.PermissionService,
	adminKey *usecases.AdminKeyService,
	requests *usecases.RequestService,
	queue *usecases.QueueService,
	player *usecases.Orchestrator,
) *CommandRouter {
	return &CommandRouter{
		permissions: permissions,
		adminKey:    adminKey,
		requests:    requests,
		queue:       queue,
		player:      player,
	}
}

// Execute runs one command line and returns the reply. An empty reply means
// nothing should be sent.
func (c *CommandRouter) Execute(ctx context.Context, text string) string {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return ""
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	slog.Info("executing command", "tag", "ADM", "command", cmd, "args", args)

	switch cmd {
	case "!help":
		return helpText
	case "!touch":
		if len(args) > 0 {
			return c.handleTouch(args[0])
		}
	case "!rm":
		if len(args) > 0 {
			return c.handleRemove(args[0])
		}
	case "!cat":
		return c.handleCat()
	case "!clr":
		c.permissions.ClearWhitelist()
		return "白名单已清空，仅保留管理员"
	case "!time":
		return c.handleTime(args)
	case "!pause":
		if err := c.player.Pause(); err != nil {
			return "当前无播放中的歌曲"
		}
		return "已暂停播放"
	case "!resume":
		if err := c.player.Resume(); err != nil {
			return "当前无播放中的歌曲"
		}
		return "已恢复播放"
	case "!skip":
		if err := c.player.Skip(); err != nil {
			return "当前无播放中的歌曲"
		}
		return "已跳过当前歌曲"
	case "!vol":
		return c.handleVolume(args)
	case "!now":
		np := c.player.NowPlaying()
		if np == nil {
			return "当前无播放"
		}
		return "正在播放: " + np.Item.Label()
	case "!history":
		return c.handleHistory(args)
	case "!queue":
		return c.handleQueue(ctx, args)
	case "!grant":
		return c.handleGrant(args)
	case "!revoke":
		return c.handleRevoke(args)
	case "!stats":
		if len(args) > 0 {
			return c.handleStats(ctx, args[0])
		}
	case "!clock":
		return c.handleClock(args)
	}

	return fmt.Sprintf("unknown command: %s，使用 !help 查看帮助", parts[0])
}

func (c *CommandRouter) handleTouch(user string) string {
	if c.permissions.AddToWhitelist(user) {
		return fmt.Sprintf("已添加 '%s' 到白名单", user)
	}
	return fmt.Sprintf("'%s' 已在白名单中", user)
}

func (c *CommandRouter) handleRemove(user string) string {
	if c.permissions.RemoveFromWhitelist(user) {
		return fmt.Sprintf("已从白名单移除 '%s'", user)
	}
	return fmt.Sprintf("'%s' 不在白名单中", user)
}

func (c *CommandRouter) handleCat() string {
	users := c.permissions.Whitelist()
	if len(users) == 0 {
		return "白名单为空"
	}

	list := strings.Join(users[:min(len(users), whitelistPreviewSize)], ", ")
	if len(users) > whitelistPreviewSize {
		list += fmt.Sprintf(" ... 等%d个用户", len(users))
	}
	return fmt.Sprintf("白名单用户 (%d人): %s", len(users), list)
}

func (c *CommandRouter) handleTime(args []string) string {
	switch {
	case len(args) == 0:
		return c.adminKey.HourBucket()
	case len(args) == 1 && args[0] == "-h":
		return "当前时间: " + c.adminKey.Now().Format("2006/01/02 15时")
	default:
		return "无效的time命令参数，使用 !help 查看帮助"
	}
}

func (c *CommandRouter) handleVolume(args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("当前音量: %d", c.player.Volume())
	}

	volume, err := strconv.Atoi(args[0])
	if err != nil {
		return "音量必须是整数"
	}
	if err := c.player.SetVolume(volume); err != nil {
		if errors.Is(err, usecases.ErrInvalidVolume) {
			return "音量范围必须是 0-100"
		}
		// The value is kept and applied to the next session.
		slog.Warn("failed to apply volume", "volume", volume, "error", err)
	}
	return fmt.Sprintf("音量已设为 %d", volume)
}

func (c *CommandRouter) handleHistory(args []string) string {
	n := defaultHistoryCount
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return "!history [数量]"
		}
		n = parsed
	}

	lines := []string{"最近播放:"}
	for _, entry := range c.player.History(n) {
		lines = append(lines, historyLabel(entry))
	}
	return strings.Join(lines, "\n")
}

func historyLabel(entry domain.HistoryEntry) string {
	if entry.Artist == "" {
		return entry.Title
	}
	return entry.Title + " - " + entry.Artist
}

func (c *CommandRouter) handleQueue(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return c.queueStatus()
	}

	sub := strings.ToLower(args[0])
	switch {
	case sub == "ls":
		return c.queueStatus()
	case sub == "add" && len(args) >= 2:
		return c.queueAdd(ctx, strings.Join(args[1:], " "), false)
	case sub == "uadd" && len(args) >= 2:
		return c.queueAdd(ctx, strings.Join(args[1:], " "), true)
	case sub == "del" && len(args) == 2:
		return c.queueDelete(args[1])
	case sub == "clr":
		return fmt.Sprintf("已清空队列，共删除 %d 首歌曲/视频", c.queue.Clear())
	default:
		return fmt.Sprintf("未知的 queue 子命令: %s，使用 !help 查看帮助", strings.Join(args, " "))
	}
}

func (c *CommandRouter) queueStatus() string {
	items := c.queue.List()
	if len(items) == 0 {
		return "当前队列为空"
	}

	lines := []string{fmt.Sprintf("当前队列中有 %d 首歌曲:", len(items))}
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, item.Label()))
	}
	return strings.Join(lines, "\n")
}

func (c *CommandRouter) queueAdd(ctx context.Context, query string, external bool) string {
	item, err := c.queue.Add(ctx, usecases.QueueAddInput{
		Query:    query,
		External: external,
	})

	var dup *usecases.DuplicateItemError
	switch {
	case err == nil:
	case errors.Is(err, usecases.ErrExternalDisabled):
		return "备线未启用"
	case errors.Is(err, usecases.ErrQueueFull):
		return "点歌队列已满，无法加入"
	case errors.As(err, &dup):
		return fmt.Sprintf("歌曲 '%s' 已在队列中，无法重复添加", dup.Title)
	case errors.Is(err, usecases.ErrVideoDisabled):
		return "视频播放未启用"
	case external:
		return "未找到歌曲"
	default:
		return "未找到歌曲或无效的视频ID"
	}

	name := item.Title()
	if external {
		name = item.Title() + " - " + item.Artist()
	}
	return fmt.Sprintf("入队成功: %s (添加者: ADMIN)", name)
}

func (c *CommandRouter) queueDelete(arg string) string {
	capacity := c.queue.Capacity()

	position, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Sprintf("无效的歌曲序号，请输入1-%d之间的数字", capacity)
	}
	if position < 1 || position > capacity {
		return fmt.Sprintf("歌曲序号必须在1-%d之间", capacity)
	}

	length := len(c.queue.List())
	if length == 0 {
		return "当前队列为空，无法删除"
	}
	if position > length {
		return fmt.Sprintf("队列中只有 %d 首歌曲，无法删除第 %d 首", length, position)
	}

	output, err := c.queue.Remove(position)
	if err != nil {
		// The player dequeued an item in between.
		return fmt.Sprintf("队列中只有 %d 首歌曲，无法删除第 %d 首", len(c.queue.List()), position)
	}
	return fmt.Sprintf("已删除第 %d 首歌曲: %s", output.Position, output.Item.Label())
}

func (c *CommandRouter) handleGrant(args []string) string {
	if len(args) == 0 {
		c.permissions.GrantTime(usecases.GrantTimeInput{})
		return "Temporarily Grant Access"
	}
	if len(args) < 2 {
		return "无效的grant命令参数，使用 !help 查看帮助"
	}

	switch args[0] {
	case "-t":
		seconds, err := strconv.Atoi(args[1])
		if err != nil {
			return "时间必须为整数"
		}
		c.permissions.GrantTime(usecases.GrantTimeInput{Seconds: &seconds})
		return fmt.Sprintf("Grant Access for %d s", seconds)
	case "-c":
		count, err := strconv.Atoi(args[1])
		if err != nil {
			return "次数必须为整数"
		}
		if err := c.permissions.GrantCount(count); err != nil {
			return "次数范围 0-100"
		}
		return fmt.Sprintf("counts.add = %d", count)
	default:
		return "无效的grant命令参数，使用 !help 查看帮助"
	}
}

func (c *CommandRouter) handleRevoke(args []string) string {
	scope := domain.RevokeAll
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "-c":
			c.permissions.Revoke(domain.RevokeCount)
			return "Revoke Permission C"
		case "-t":
			scope = domain.RevokeTime
		case "-ct", "-tc":
		default:
			return "无效的revoke命令参数，使用 !help 查看帮助"
		}
	}

	c.permissions.Revoke(scope)
	return "Revoke Permission"
}

func (c *CommandRouter) handleStats(ctx context.Context, user string) string {
	stats, err := c.requests.Stats(ctx, user)
	if err != nil {
		slog.Error("failed to read request stats", "username", user, "error", err)
		return "查询失败"
	}
	if stats.Total == 0 {
		return fmt.Sprintf("%s 没有点过歌", user)
	}
	return fmt.Sprintf("%s 点过 %d 首歌\n最近5首:\n%s", user, stats.Total, strings.Join(stats.Recent, "\n"))
}

func (c *CommandRouter) handleClock(args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("VIDEO_TIMEOUT_BUFFER: %d", int(c.player.TimeoutBuffer()/time.Second))
	}

	seconds, err := strconv.Atoi(args[0])
	if err != nil {
		return "Invalid Literal"
	}
	if err := c.player.SetTimeoutBuffer(time.Duration(seconds) * time.Second); err != nil {
		return "Undefined Behavior"
	}
	return fmt.Sprintf("超时参数: %d s", seconds)
}
