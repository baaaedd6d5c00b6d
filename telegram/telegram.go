package telegram

import (
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	"fitcheckedapi/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var usernames string = os.Getenv("TG_ADMINS") //separated by comma from env

func isAdmin(allowlist string, username string) bool {
	return slices.Contains(strings.Split(allowlist, ","), username)
}

func EscapeMessage(message string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(message)
}

func statsMessage(db *gorm.DB) string {
	var userCount int64
	var closetCount int64
	var requestsToday int64
	var completedToday int64
	today := time.Now().Format("2006-01-02")

	db.Model(&models.UserAccount{}).Count(&userCount)
	db.Model(&models.ClosetItem{}).Count(&closetCount)
	db.Model(&models.OutfitRequest{}).Where("DATE(created_at) = ?", today).Count(&requestsToday)
	db.Model(&models.OutfitRequest{}).Where("DATE(created_at) = ? AND status = ?", today, "completed").Count(&completedToday)

	b := strings.Builder{}
	b.WriteString("```\n")
	b.WriteString(fmt.Sprintf("👤 Users:            %v\n", userCount))
	b.WriteString(fmt.Sprintf("👗 Closet items:     %v\n", closetCount))
	b.WriteString(fmt.Sprintf("✨ Requests today:   %v\n", requestsToday))
	b.WriteString(fmt.Sprintf("✅ Completed today:  %v\n", completedToday))
	b.WriteString("```")
	return b.String()
}

func failuresMessage(db *gorm.DB) string {
	var failed []models.OutfitRequest
	db.Where("status = ? AND DATE(created_at) = ?", "failed", time.Now().Format("2006-01-02")).Order("created_at desc").Limit(10).Find(&failed)
	if len(failed) == 0 {
		return "No failed generations today ✅"
	}
	b := strings.Builder{}
	b.WriteString("```\n")
	for _, request := range failed {
		message := ""
		if request.ErrorMessage != nil {
			message = *request.ErrorMessage
		}
		b.WriteString(fmt.Sprintf("#%v 🕐 %s\n%s\n%s\n\n", request.ID, request.CreatedAt.Format("15:04"), EscapeMessage(request.OccasionText), EscapeMessage(message)))
	}
	b.WriteString("```")
	return b.String()
}

// RunAdminBot serves operational stats over telegram for the admins
// listed in TG_ADMINS.
func RunAdminBot(e *echo.Echo, db *gorm.DB) {

	if usernames == "" {
		usernames = "formality8765"
	}
	bot, err := tgbotapi.NewBotAPI(os.Getenv("TG_TOKEN"))
	if err != nil {
		println("Error tg bot init")
		log.Panic(err)
	}
	bot.Debug = true

	log.Printf("Authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		if update.FromChat() == nil || !isAdmin(usernames, update.FromChat().UserName) {
			log.Printf("Ignoring message from %v", update.Message.From.UserName)
			continue
		}
		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		var text string
		switch update.Message.Command() {
		case "start":
			text = "Commands: /stats for today's numbers, /failures for failed generations."
		case "stats":
			text = statsMessage(db)
		case "failures":
			text = failuresMessage(db)
		default:
			text = "Unknown command. Try /stats or /failures."
		}
		msg := tgbotapi.NewMessage(update.Message.Chat.ID, text)
		msg.ParseMode = "markdown"
		msg.ReplyToMessageID = update.Message.MessageID
		if _, err := bot.Send(msg); err != nil {
			log.Println(err.Error())
		}
	}
}
