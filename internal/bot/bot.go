package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/services"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
)

// API is the slice of the telegram client the dispatcher needs. Satisfied by
// *tgbotapi.BotAPI.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(cfg tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

var statusLabels = map[models.OrderStatus]string{
	models.OrderStatusPending:   "Pendiente",
	models.OrderStatusConfirmed: "Confirmada",
	models.OrderStatusInTransit: "En camino",
	models.OrderStatusImHere:    "Estoy aquí",
	models.OrderStatusDelivered: "Entregada",
}

// Bot routes customer messages and inline button presses through the
// ordering conversation.
type Bot struct {
	DB          *gorm.DB
	API         API
	Store       ConversationStore
	Orders      *services.OrderService
	MaxQuantity int
}

func NewBot(db *gorm.DB, api API, store ConversationStore, orders *services.OrderService, maxQuantity int) *Bot {
	return &Bot{DB: db, API: api, Store: store, Orders: orders, MaxQuantity: maxQuantity}
}

var inputAliases = map[string]string{
	"🛍️ Nueva orden":   "/orden",
	"🧾 Historial":      "/historial",
	"❌ Cancelar":       "/cancel",
	"⏭️ Sin comentario": "/sincomentario",
	"/rden":            "/orden",
}

func normalizeInput(text string) string {
	value := strings.TrimSpace(text)
	if mapped, ok := inputAliases[value]; ok {
		return mapped
	}
	return value
}

func (b *Bot) customerByTelegramID(telegramID int64) *models.User {
	var user models.User
	err := b.DB.Preload("Role").Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		return nil
	}
	return &user
}

// HandleMessage runs one inbound text message through the conversation
// state machine. Messages from unknown or unapproved senders are ignored.
func (b *Bot) HandleMessage(msg *tgbotapi.Message) error {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	telegramID := msg.From.ID
	chatID := msg.Chat.ID
	text := normalizeInput(msg.Text)
	if text == "" {
		return nil
	}

	user := b.customerByTelegramID(telegramID)
	if user == nil || !user.CanOrder() {
		logger.Info("bot_message_ignored", map[string]interface{}{
			"telegram_id": telegramID,
		})
		return nil
	}

	if text == "/cancel" {
		b.Store.Delete(telegramID)
		return b.sendText(chatID, "❌ Operación cancelada. Usa /orden para iniciar una nueva solicitud.", nil)
	}

	if strings.HasPrefix(text, "/start") || text == "/menu" {
		b.Store.Delete(telegramID)
		welcome := strings.Join([]string{
			"👋 Bienvenido a <b>GreenDelivery</b>.",
			"",
			"Comandos disponibles:",
			"• <b>/orden</b> - Crear una nueva orden",
			"• <b>/historial</b> - Ver historial de órdenes",
			"• <b>/cancel</b> - Cancelar flujo actual",
		}, "\n")
		return b.sendText(chatID, welcome, customerMenuKeyboard())
	}

	if text == "/historial" || text == "/ordenes" {
		return b.sendHistory(chatID, user)
	}

	if text == "/orden" {
		return b.openCatalog(telegramID, chatID)
	}

	conv, ok := b.Store.Get(telegramID)
	if ok && conv.Step == StepAwaitingAddress {
		return b.collectAddress(telegramID, chatID, conv, text)
	}
	if ok && conv.Step == StepAwaitingComment {
		return b.commitOrder(telegramID, chatID, user, conv, text)
	}

	return b.sendText(chatID,
		"Usa los botones del menú o escribe <b>/orden</b> para crear una orden y <b>/historial</b> para ver tus órdenes.",
		customerMenuKeyboard())
}

func (b *Bot) sendHistory(chatID int64, user *models.User) error {
	orders, err := b.Orders.HistoryForUser(user.ID, 10)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return b.sendText(chatID, "📭 No tienes órdenes registradas todavía.", nil)
	}

	for _, order := range orders {
		label, ok := statusLabels[order.Status]
		if !ok {
			label = string(order.Status)
		}

		var itemLines []string
		for _, item := range order.Items {
			name := item.Product.Name
			if name == "" {
				name = "Producto"
			}
			itemLines = append(itemLines, fmt.Sprintf("   - %s x%d ($%.2f)", name, item.Quantity, item.Price))
		}
		if len(itemLines) == 0 {
			itemLines = []string{"   - Sin items"}
		}

		body := strings.Join([]string{
			fmt.Sprintf("🧾 <b>Orden #%d</b>", order.ID),
			fmt.Sprintf("Estado: <b>%s</b>", label),
			fmt.Sprintf("Total: <b>$%.2f</b>", order.Total),
			fmt.Sprintf("Fecha: %s", order.CreatedAt.Format("02/01/2006 15:04")),
			"Items:",
			strings.Join(itemLines, "\n"),
		}, "\n")
		if err := b.sendText(chatID, body, nil); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) openCatalog(telegramID, chatID int64) error {
	products, err := b.activeProducts()
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return b.sendText(chatID, "📭 No hay productos activos en este momento.", nil)
	}

	for _, product := range products {
		caption := productCaption(product)
		controls := productCardKeyboard(product.ID, 0)
		if err := b.sendProductCard(chatID, product, caption, controls); err != nil {
			return err
		}
	}

	b.Store.Set(telegramID, &Conversation{Step: StepSelectingProducts, Cart: NewCart()})

	return b.sendText(chatID, catalogSummary(products), orderActionsKeyboard())
}

// sendProductCard tries the richest rendering the product's images allow and
// falls back to a plain text card when a photo send fails.
func (b *Bot) sendProductCard(chatID int64, product models.Product, caption string, controls *tgbotapi.InlineKeyboardMarkup) error {
	fallback := func() error { return b.sendText(chatID, caption, controls) }

	switch {
	case len(product.Images) > 1:
		media := make([]interface{}, 0, len(product.Images))
		for _, image := range product.Images {
			media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(image.ImageURL)))
		}
		if _, err := b.API.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
			logger.Warn("bot_media_group_failed", map[string]interface{}{
				"product_id": product.ID,
				"error":      err.Error(),
			})
		}
		return fallback()
	case len(product.Images) == 1:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(product.Images[0].ImageURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyMarkup = controls
		if _, err := b.API.Send(photo); err != nil {
			logger.Warn("bot_photo_failed", map[string]interface{}{
				"product_id": product.ID,
				"error":      err.Error(),
			})
			return fallback()
		}
		return nil
	default:
		return fallback()
	}
}

func (b *Bot) collectAddress(telegramID, chatID int64, conv *Conversation, text string) error {
	if utf8.RuneCountInString(text) < 5 {
		return b.sendText(chatID, "⚠️ Dirección demasiado corta. Envía una dirección válida.", nil)
	}

	conv.Address = text
	conv.Step = StepAwaitingComment
	b.Store.Set(telegramID, conv)

	keyboard := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("⏭️ Sin comentario")),
	)
	return b.sendText(chatID,
		"💬 Envía un comentario para el courier (ej: referencias, timbre, portón). Si no deseas agregar comentario, usa <b>/sincomentario</b>.",
		keyboard)
}

func (b *Bot) commitOrder(telegramID, chatID int64, user *models.User, conv *Conversation, text string) error {
	comment := text
	if comment == "/sincomentario" {
		comment = ""
	}

	order, err := b.Orders.CreateFromCart(user.ID, conv.Cart.Lines(), conv.Address, comment)
	b.Store.Delete(telegramID)
	if err != nil {
		logger.Warn("bot_order_commit_failed", map[string]interface{}{
			"telegram_id": telegramID,
			"error":       err.Error(),
		})
		return b.sendText(chatID, "❌ No se pudo crear la orden. Usa /orden para intentarlo de nuevo.", nil)
	}

	commentLine := "🗒️ Comentario courier: <b>Sin comentario</b>"
	if comment != "" {
		commentLine = fmt.Sprintf("🗒️ Comentario courier: <b>%s</b>", comment)
	}
	body := strings.Join([]string{
		"✅ <b>Orden creada correctamente</b>",
		fmt.Sprintf("🧾 Número de orden: <b>#%d</b>", order.ID),
		fmt.Sprintf("💵 Total: <b>$%.2f</b>", order.Total),
		"📌 Estado inicial: <b>pending</b>",
		commentLine,
		"",
		"Te notificaremos cuando cambie el estado de tu orden.",
	}, "\n")
	return b.sendText(chatID, body, customerMenuKeyboard())
}

// HandleCallback processes one inline button press. Every press is
// acknowledged so the client clears its spinner, whatever the outcome.
func (b *Bot) HandleCallback(query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil || query.Message == nil || query.Data == "" {
		return nil
	}
	telegramID := query.From.ID
	chatID := query.Message.Chat.ID

	user := b.customerByTelegramID(telegramID)
	if user == nil || !user.CanOrder() {
		return b.answer(query.ID, "No autorizado")
	}

	conv, ok := b.Store.Get(telegramID)
	if !ok || conv.Step != StepSelectingProducts {
		return b.answer(query.ID, "Inicia una orden con /orden")
	}

	callback, err := ParseCallback(query.Data)
	if err != nil {
		return b.answer(query.ID, "Acción no soportada")
	}

	if callback.CardAction() {
		return b.handleCardAction(query, telegramID, chatID, conv, callback)
	}

	switch callback.Action {
	case ActionSummary:
		if err := b.answer(query.ID, "Mostrando selección"); err != nil {
			return err
		}
		summary, err := b.cartSummary(conv.Cart)
		if err != nil {
			return err
		}
		return b.sendText(chatID, summary, nil)
	case ActionFinalize:
		return b.finalizeSelection(query, telegramID, chatID, conv)
	}
	return b.answer(query.ID, "Acción no soportada")
}

func (b *Bot) handleCardAction(query *tgbotapi.CallbackQuery, telegramID, chatID int64, conv *Conversation, callback Callback) error {
	var product models.Product
	err := b.DB.Where("id = ? AND active = ?", callback.ProductID, true).First(&product).Error
	if err != nil {
		b.Store.Delete(telegramID)
		if err := b.answer(query.ID, "Producto no disponible"); err != nil {
			return err
		}
		return b.sendText(chatID, "❌ El producto ya no está disponible. Usa /orden para iniciar de nuevo.", nil)
	}

	if callback.Action == ActionQuantity {
		return b.answer(query.ID, fmt.Sprintf("Cantidad actual: %d", conv.Cart.Quantity(product.ID)))
	}

	var quantity int
	switch callback.Action {
	case ActionIncrement:
		quantity, err = conv.Cart.Increment(product.ID, b.MaxQuantity)
	case ActionDecrement:
		quantity, err = conv.Cart.Decrement(product.ID)
	case ActionRemove:
		err = conv.Cart.Remove(product.ID)
	}
	if err != nil {
		return b.answer(query.ID, "Acción no soportada")
	}
	b.Store.Set(telegramID, conv)

	ack := fmt.Sprintf("%s quitado", product.Name)
	if quantity > 0 {
		ack = fmt.Sprintf("%s: %d", product.Name, quantity)
	}
	if err := b.answer(query.ID, ack); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, query.Message.MessageID, *productCardKeyboard(product.ID, quantity))
	_, err = b.API.Request(edit)
	return err
}

func (b *Bot) finalizeSelection(query *tgbotapi.CallbackQuery, telegramID, chatID int64, conv *Conversation) error {
	if conv.Cart.Empty() {
		if err := b.answer(query.ID, "Agrega al menos un producto"); err != nil {
			return err
		}
		return b.sendText(chatID, "⚠️ Debes seleccionar al menos un producto antes de finalizar.", nil)
	}

	summary, err := b.cartSummary(conv.Cart)
	if err != nil {
		return err
	}
	if err := conv.Cart.Finalize(); err != nil {
		return b.answer(query.ID, "Agrega al menos un producto")
	}
	conv.Step = StepAwaitingAddress
	b.Store.Set(telegramID, conv)

	if err := b.answer(query.ID, "Selección finalizada"); err != nil {
		return err
	}
	return b.sendText(chatID, summary+"\n\n📍 Ahora envía la <b>dirección de entrega</b> de tu orden.", nil)
}

func (b *Bot) activeProducts() ([]models.Product, error) {
	var products []models.Product
	err := b.DB.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		Where("active = ?", true).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (b *Bot) cartSummary(cart *Cart) (string, error) {
	lines := cart.Snapshot()
	if len(lines) == 0 {
		return "Aún no has agregado productos.", nil
	}

	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	var products []models.Product
	if err := b.DB.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return "", err
	}
	names := make(map[uint]string, len(products))
	for _, product := range products {
		names[product.ID] = product.Name
	}

	out := []string{"🧺 <b>Tu selección actual</b>"}
	for _, line := range lines {
		name := names[line.ProductID]
		if name == "" {
			name = fmt.Sprintf("Producto %d", line.ProductID)
		}
		out = append(out, fmt.Sprintf("• %s: %d", name, line.Quantity))
	}
	return strings.Join(out, "\n"), nil
}

func (b *Bot) sendText(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.API.Send(msg)
	return err
}

func (b *Bot) answer(callbackID, text string) error {
	_, err := b.API.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func customerMenuKeyboard() *tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🛍️ Nueva orden"),
			tgbotapi.NewKeyboardButton("🧾 Historial"),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("❌ Cancelar")),
	)
	return &keyboard
}

func productCardKeyboard(productID uint, quantity int) *tgbotapi.InlineKeyboardMarkup {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖", fmt.Sprintf("card:dec:%d", productID)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Cantidad: %d", quantity), fmt.Sprintf("card:qty:%d", productID)),
			tgbotapi.NewInlineKeyboardButtonData("➕", fmt.Sprintf("card:inc:%d", productID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑️ Quitar", fmt.Sprintf("card:rm:%d", productID)),
		),
	)
	return &keyboard
}

func orderActionsKeyboard() *tgbotapi.InlineKeyboardMarkup {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧺 Ver selección", "pick:summary"),
			tgbotapi.NewInlineKeyboardButtonData("✅ Finalizar selección", "pick:done"),
		),
	)
	return &keyboard
}

func productCaption(product models.Product) string {
	parts := []string{fmt.Sprintf("🛍️ <b>%s</b>", product.Name)}
	if product.Description != "" {
		parts = append(parts, product.Description)
	}
	parts = append(parts, fmt.Sprintf("Precio: <b>$%.2f</b>", product.Price))
	return strings.Join(parts, "\n")
}

func catalogSummary(products []models.Product) string {
	lines := []string{
		"🛍️ <b>Productos disponibles</b> (uno por mensaje)",
		"",
		"Usa los botones debajo de cada producto para ajustar cantidad.",
		"Puedes combinar varios productos en una sola orden.",
		"",
	}
	for _, product := range products {
		lines = append(lines, fmt.Sprintf("• ID %d: %s - $%.2f", product.ID, product.Name, product.Price))
	}
	return strings.Join(lines, "\n")
}
