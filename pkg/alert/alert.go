package alert

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/pkg/logutils"
)

// alertMgr implements workflow.Notifier. Notifications are fire-and-forget:
// every delivery failure is logged here and never reaches the workflow
// transition that triggered it.
type alertMgr struct {
	handler alertHandlerInterface
	db      *gorm.DB
}

var (
	once    sync.Once
	alerter *alertMgr

	log = logutils.WithComponent("alert")
)

// GetAlertMgr returns the singleton notifier backed by SMTP.
func GetAlertMgr(db *gorm.DB) *alertMgr { //nolint:revive // unexported-return, consumers use the workflow.Notifier interface.
	once.Do(func() {
		alerter = &alertMgr{
			handler: newSMTPAlerter(),
			db:      db,
		}
	})
	return alerter
}

func (a *alertMgr) sendToUser(ctx context.Context, userID uint, subject, body string) {
	var user model.User
	if err := a.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		log.Errorf("load user %d: %v", userID, err)
		return
	}
	if user.Email == nil {
		log.Debugf("user %d has no email, skipping", userID)
		return
	}
	if err := a.handler.SendMessageTo(ctx, *user.Email, subject, body); err != nil {
		log.Errorf("send to user %d: %v", userID, err)
	}
}

func (a *alertMgr) OfferExtended(ctx context.Context, app *model.Application) {
	subject := "You received a project offer"
	body := fmt.Sprintf("Your application %d has been offered a place. The offer expires at %s.",
		app.ID, app.OfferExpiresAt)
	for _, sid := range app.StudentIDs {
		a.sendToUser(ctx, sid, subject, body)
	}
}

func (a *alertMgr) OfferAccepted(ctx context.Context, app *model.Application) {
	var proj model.Project
	if err := a.db.WithContext(ctx).First(&proj, app.ProjectID).Error; err != nil {
		log.Errorf("load project %d: %v", app.ProjectID, err)
		return
	}
	a.sendToUser(ctx, proj.PartnerID, "Offer accepted",
		fmt.Sprintf("The applicant of application %d accepted the offer for project %q.", app.ID, proj.Title))
}

func (a *alertMgr) MilestoneReleased(ctx context.Context, m *model.Milestone) {
	var apps []model.Application
	err := a.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", m.ProjectID, model.AppAssigned).
		Find(&apps).Error
	if err != nil {
		log.Errorf("load applications for project %d: %v", m.ProjectID, err)
		return
	}
	subject := "Milestone payment released"
	body := fmt.Sprintf("The escrow for milestone %q has been released.", m.Title)
	for i := range apps {
		for _, sid := range apps[i].StudentIDs {
			a.sendToUser(ctx, sid, subject, body)
		}
	}
}

func (a *alertMgr) ChangesRequested(ctx context.Context, m *model.Milestone, justification string) {
	var apps []model.Application
	err := a.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", m.ProjectID, model.AppAssigned).
		Find(&apps).Error
	if err != nil {
		log.Errorf("load applications for project %d: %v", m.ProjectID, err)
		return
	}
	subject := "Changes requested on your milestone"
	body := fmt.Sprintf("Milestone %q was sent back for changes: %s", m.Title, justification)
	for i := range apps {
		for _, sid := range apps[i].StudentIDs {
			a.sendToUser(ctx, sid, subject, body)
		}
	}
}

func (a *alertMgr) DisputeEscalated(ctx context.Context, d *model.Dispute) {
	a.sendToUser(ctx, d.InitiatorID, "Your dispute was escalated",
		fmt.Sprintf("Dispute %s is now handled at level %d.", d.UUID, d.Level))
}
