package services

import (
	"context"
	"fmt"

	"tripsplit-backend/config"
	"tripsplit-backend/database"
	"tripsplit-backend/logger"
	"tripsplit-backend/models"
	"tripsplit-backend/settlement"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"google.golang.org/api/option"
)

// NotificationService sends push notifications through FCM and email
// through SendGrid. Both channels are best-effort; failures are logged,
// never surfaced to API callers.
type NotificationService struct {
	fcm *messaging.Client
}

var notifService *NotificationService

func formatMinor(minor int64, currency string) string {
	return settlement.FormatAmount(settlement.Amount(minor), currency)
}

func GetNotificationService() *NotificationService {
	if notifService == nil {
		notifService = &NotificationService{fcm: newMessagingClient()}
	}
	return notifService
}

func newMessagingClient() *messaging.Client {
	if config.AppConfig == nil || config.AppConfig.FirebaseCredPath == "" {
		return nil
	}
	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(config.AppConfig.FirebaseCredPath))
	if err != nil {
		logger.Get().Warnw("firebase unavailable, push notifications disabled", "error", err)
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Get().Warnw("fcm client init failed, push notifications disabled", "error", err)
		return nil
	}
	return client
}

func (ns *NotificationService) sendPush(fcmToken, title, body string, data map[string]string) {
	if ns.fcm == nil || fcmToken == "" {
		return
	}

	msg := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := ns.fcm.Send(context.Background(), msg); err != nil {
		logger.Get().Warnw("push send failed", "error", err)
	}
}

func (ns *NotificationService) sendEmail(toEmail, toName, subject, htmlBody string) {
	if config.AppConfig == nil || config.AppConfig.SendGridAPIKey == "" {
		logger.Get().Debugw("sendgrid key not set, skipping email", "to", toEmail)
		return
	}

	from := mail.NewEmail(config.AppConfig.AppName, config.AppConfig.SendGridFrom)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	client := sendgrid.NewSendClient(config.AppConfig.SendGridAPIKey)
	resp, err := client.Send(message)
	if err != nil {
		logger.Get().Warnw("email send failed", "to", toEmail, "error", err)
		return
	}
	if resp.StatusCode >= 300 {
		logger.Get().Warnw("sendgrid rejected email", "to", toEmail, "status", resp.StatusCode)
	}
}

// NotifyExpenseAdded tells every non-payer participant about their share.
func (ns *NotificationService) NotifyExpenseAdded(expense models.Expense, shares []models.ExpenseShare, payer models.User, trip models.Trip) {
	for _, share := range shares {
		if share.UserID == expense.PaidBy {
			continue
		}

		var user models.User
		if err := database.DB.First(&user, share.UserID).Error; err != nil {
			continue
		}

		owed := formatMinor(share.OwedMinor, expense.Currency)
		title := fmt.Sprintf("%s added an expense", payer.Name)
		body := fmt.Sprintf("You owe %s %s for %q in %s", expense.Currency, owed, expense.Description, trip.Name)

		ns.sendPush(user.FCMToken, title, body, map[string]string{
			"type":       "expense_added",
			"expense_id": expense.ID.String(),
			"trip_id":    expense.TripID.String(),
		})

		htmlBody := fmt.Sprintf(
			"<p>Hi <strong>%s</strong>,</p><p><strong>%s</strong> added %q in <strong>%s</strong>.</p><p>Your share: <strong>%s %s</strong></p>",
			user.Name, payer.Name, expense.Description, trip.Name, expense.Currency, owed)
		ns.sendEmail(user.Email, user.Name,
			fmt.Sprintf("%s added %q in %s", payer.Name, expense.Description, trip.Name), htmlBody)
	}
}

// NotifyTransferSettled tells the payee their payment was confirmed.
func (ns *NotificationService) NotifyTransferSettled(record models.SettlementRecord, payer models.User, payee models.User, trip models.Trip) {
	amount := formatMinor(record.AmountMinor, record.Currency)
	title := fmt.Sprintf("%s settled up", payer.Name)
	body := fmt.Sprintf("%s confirmed paying you %s %s in %s", payer.Name, record.Currency, amount, trip.Name)

	ns.sendPush(payee.FCMToken, title, body, map[string]string{
		"type":    "transfer_settled",
		"trip_id": record.TripID.String(),
	})

	htmlBody := fmt.Sprintf(
		"<p>Hi <strong>%s</strong>,</p><p><strong>%s</strong> confirmed a payment of <strong>%s %s</strong> to you in <strong>%s</strong>.</p>",
		payee.Name, payer.Name, record.Currency, amount, trip.Name)
	ns.sendEmail(payee.Email, payee.Name,
		fmt.Sprintf("%s settled up with you in %s", payer.Name, trip.Name), htmlBody)
}

// NotifySettledDrift tells both parties that a confirmed payment was
// reopened because its recomputed amount changed.
func (ns *NotificationService) NotifySettledDrift(trip models.Trip, payer models.User, payee models.User, amountMinor int64, currency string) {
	amount := formatMinor(amountMinor, currency)
	title := "A settled payment was reopened"
	body := fmt.Sprintf("The payment from %s to %s in %s changed to %s %s and needs confirmation again",
		payer.Name, payee.Name, trip.Name, currency, amount)

	for _, u := range []models.User{payer, payee} {
		ns.sendPush(u.FCMToken, title, body, map[string]string{
			"type":    "settled_drift",
			"trip_id": trip.ID.String(),
		})
	}
}

// NotifyMemberAdded tells a user they were added to a trip.
func (ns *NotificationService) NotifyMemberAdded(trip models.Trip, adder models.User, newMember models.User) {
	title := fmt.Sprintf("You were added to %q", trip.Name)
	body := fmt.Sprintf("%s added you to the trip %q", adder.Name, trip.Name)

	ns.sendPush(newMember.FCMToken, title, body, map[string]string{
		"type":    "member_added",
		"trip_id": trip.ID.String(),
	})

	htmlBody := fmt.Sprintf(
		"<p>Hi <strong>%s</strong>,</p><p><strong>%s</strong> added you to <strong>%q</strong>. Open the app to start splitting expenses.</p>",
		newMember.Name, adder.Name, trip.Name)
	ns.sendEmail(newMember.Email, newMember.Name, title, htmlBody)
}

// NotifyInvitation emails a person who has no account yet.
func (ns *NotificationService) NotifyInvitation(email, inviterName, tripName string) {
	subject := fmt.Sprintf("%s invited you to join %q on %s", inviterName, tripName, config.AppConfig.AppName)
	htmlBody := fmt.Sprintf(
		"<p><strong>%s</strong> invited you to join <strong>%q</strong> on %s.</p><p><a href=%q>Join now</a></p>",
		inviterName, tripName, config.AppConfig.AppName, config.AppConfig.AppURL)
	ns.sendEmail(email, "", subject, htmlBody)
}
