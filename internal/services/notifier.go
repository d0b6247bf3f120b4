package services

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
)

// Notifier delivers out-of-band messages to an actor's chat. Failures are
// for the caller to log; they must never abort the triggering request.
type Notifier interface {
	SendLoginCode(chatID int64, code string) error
	NotifyOrderStatus(chatID int64, orderID uint, status models.OrderStatus) error
}

// MessageSender is the slice of the telegram client the notifier needs,
// satisfied by *tgbotapi.BotAPI.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	API MessageSender
}

func NewTelegramNotifier(api MessageSender) *TelegramNotifier {
	return &TelegramNotifier{API: api}
}

func (n *TelegramNotifier) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.API.Send(msg)
	return err
}

func (n *TelegramNotifier) SendLoginCode(chatID int64, code string) error {
	text := fmt.Sprintf(
		"🔐 <b>GreenDelivery - Código 2FA</b>\n\nTu código es: <b>%s</b>\n\n⏱️ Expira en 5 minutos.",
		code,
	)
	return n.send(chatID, text)
}

var statusMessages = map[models.OrderStatus]string{
	models.OrderStatusPending:   "Estado: <b>Pendiente</b>\nEstamos procesando tu pedido.",
	models.OrderStatusConfirmed: "Estado: <b>Confirmada</b>\nTu pedido fue confirmado.",
	models.OrderStatusInTransit: "Estado: <b>En camino</b>\nEl courier va en ruta.",
	models.OrderStatusImHere:    "Estado: <b>Estoy aquí</b>\nEl courier ya llegó al punto de entrega.",
	models.OrderStatusDelivered: "Estado: <b>Entregada</b>\nTu pedido fue entregado correctamente.",
}

func (n *TelegramNotifier) NotifyOrderStatus(chatID int64, orderID uint, status models.OrderStatus) error {
	body, ok := statusMessages[status]
	if !ok {
		body = fmt.Sprintf("Nuevo estado: <b>%s</b>", status)
	}

	text := fmt.Sprintf("📦 <b>Actualización de orden</b>\n\nOrden #%d\n%s", orderID, body)
	return n.send(chatID, text)
}
