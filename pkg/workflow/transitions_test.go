package workflow

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/raids-lab/triad/dao/model"
)

func TestTransitionTables(t *testing.T) {
	t.Run("application", func(t *testing.T) {
		Convey("application transition table", t, func() {
			Convey("forward path", func() {
				So(applicationCanMove(model.AppSubmitted, model.AppShortlisted), ShouldBeTrue)
				So(applicationCanMove(model.AppShortlisted, model.AppOffered), ShouldBeTrue)
				So(applicationCanMove(model.AppOffered, model.AppAssigned), ShouldBeTrue)
				So(applicationCanMove(model.AppOffered, model.AppDeclined), ShouldBeTrue)
			})

			Convey("waitlist is a parking state, not a dead end", func() {
				So(applicationCanMove(model.AppSubmitted, model.AppWaitlisted), ShouldBeTrue)
				So(applicationCanMove(model.AppShortlisted, model.AppWaitlisted), ShouldBeTrue)
				So(applicationCanMove(model.AppWaitlisted, model.AppShortlisted), ShouldBeTrue)
				So(applicationCanMove(model.AppWaitlisted, model.AppOffered), ShouldBeFalse)
			})

			Convey("terminal states have no outgoing edges", func() {
				for _, terminal := range []model.ApplicationStatus{
					model.AppAssigned, model.AppRejected, model.AppDeclined,
				} {
					So(applicationTransitions[terminal], ShouldBeEmpty)
				}
			})

			Convey("no skipping straight to an offer", func() {
				So(applicationCanMove(model.AppSubmitted, model.AppOffered), ShouldBeFalse)
				So(applicationCanMove(model.AppSubmitted, model.AppAssigned), ShouldBeFalse)
			})
		})
	})

	t.Run("milestone", func(t *testing.T) {
		Convey("milestone transition table", t, func() {
			Convey("forward path", func() {
				So(milestoneCanMove(model.MilestoneProposed, model.MilestoneFinalized), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneFinalized, model.MilestoneInProgress), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneInProgress, model.MilestoneSubmitted), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneSubmitted, model.MilestoneSupervisorReview), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneSupervisorReview, model.MilestonePartnerReview), ShouldBeTrue)
				So(milestoneCanMove(model.MilestonePartnerReview, model.MilestoneReleased), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneReleased, model.MilestoneCompleted), ShouldBeTrue)
			})

			Convey("the changes-requested loop", func() {
				So(milestoneCanMove(model.MilestoneSupervisorReview, model.MilestoneChangesRequested), ShouldBeTrue)
				So(milestoneCanMove(model.MilestonePartnerReview, model.MilestoneChangesRequested), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneChangesRequested, model.MilestoneInProgress), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneChangesRequested, model.MilestoneSubmitted), ShouldBeFalse)
			})

			Convey("administrative reversals", func() {
				So(milestoneCanMove(model.MilestoneReleased, model.MilestonePartnerReview), ShouldBeTrue)
				So(milestoneCanMove(model.MilestoneCompleted, model.MilestoneReleased), ShouldBeTrue)
			})

			Convey("no reverse edges elsewhere", func() {
				So(milestoneCanMove(model.MilestoneFinalized, model.MilestoneProposed), ShouldBeFalse)
				So(milestoneCanMove(model.MilestoneSubmitted, model.MilestoneInProgress), ShouldBeFalse)
				So(milestoneCanMove(model.MilestoneReleased, model.MilestoneInProgress), ShouldBeFalse)
			})
		})
	})

	t.Run("invariants", func(t *testing.T) {
		Convey("joint status and escrow validation", t, func() {
			Convey("started work requires funded escrow", func() {
				m := &model.Milestone{Status: model.MilestoneInProgress, EscrowStatus: model.EscrowUnfunded}
				err := checkInvariants(m)
				So(err, ShouldNotBeNil)
				So(IsKind(err, KindInvalidState), ShouldBeTrue)

				m.EscrowStatus = model.EscrowFunded
				So(checkInvariants(m), ShouldBeNil)
			})

			Convey("release requires the supervisor gate", func() {
				m := &model.Milestone{
					Status:       model.MilestoneReleased,
					EscrowStatus: model.EscrowReleased,
				}
				err := checkInvariants(m)
				So(IsKind(err, KindInvalidState), ShouldBeTrue)

				m.SupervisorGate = true
				So(checkInvariants(m), ShouldBeNil)
			})

			Convey("negotiation phase accepts unfunded escrow", func() {
				for _, status := range []model.MilestoneStatus{
					model.MilestoneProposed, model.MilestoneFinalized,
				} {
					m := &model.Milestone{Status: status, EscrowStatus: model.EscrowUnfunded}
					So(checkInvariants(m), ShouldBeNil)
				}
			})
		})
	})
}
