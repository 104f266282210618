package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/persistence"
)

func toApplicationUser(model persistence.User) application.UserCredentials {
	return application.UserCredentials{
		User: application.User{
			ID:          model.ID,
			Username:    model.Username,
			Email:       model.Email,
			DisplayName: model.DisplayName,
			CreatedAt:   model.CreatedAt,
			UpdatedAt:   model.UpdatedAt,
		},
		PasswordHash: model.PasswordHash,
	}
}

func toPersistenceUser(user application.UserCredentials) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationBand(model persistence.Band) application.Band {
	return application.Band{
		ID:          model.ID,
		Name:        model.Name,
		Description: cloneString(model.Description),
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceBand(b application.Band) persistence.Band {
	return persistence.Band{
		ID:          b.ID,
		Name:        b.Name,
		Description: cloneString(b.Description),
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func toApplicationMember(model persistence.BandMember) (application.BandMember, error) {
	role, err := band.ParseRole(model.Role)
	if err != nil {
		return application.BandMember{}, fmt.Errorf("adapter: member %s/%s: %w", model.BandID, model.UserID, err)
	}
	status, err := band.ParseInvitationStatus(model.InvitationStatus)
	if err != nil {
		return application.BandMember{}, fmt.Errorf("adapter: member %s/%s: %w", model.BandID, model.UserID, err)
	}
	return application.BandMember{
		Membership: band.Membership{
			BandID:           model.BandID,
			UserID:           model.UserID,
			Role:             role,
			InvitationStatus: status,
		},
		Instrument: cloneString(model.Instrument),
		JoinedAt:   model.JoinedAt,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

func toPersistenceMember(member application.BandMember) persistence.BandMember {
	return persistence.BandMember{
		BandID:           member.BandID,
		UserID:           member.UserID,
		Role:             string(member.Role),
		Instrument:       cloneString(member.Instrument),
		InvitationStatus: string(member.InvitationStatus),
		JoinedAt:         member.JoinedAt,
		UpdatedAt:        member.UpdatedAt,
	}
}

func toApplicationRule(model persistence.AvailabilityRule) (application.AvailabilityRule, error) {
	start, err := availability.ParseTimeOfDay(model.StartTime)
	if err != nil {
		return application.AvailabilityRule{}, fmt.Errorf("adapter: rule %s start: %w", model.ID, err)
	}
	end, err := availability.ParseTimeOfDay(model.EndTime)
	if err != nil {
		return application.AvailabilityRule{}, fmt.Errorf("adapter: rule %s end: %w", model.ID, err)
	}
	return application.AvailabilityRule{
		Rule: availability.Rule{
			ID:             model.ID,
			UserID:         model.UserID,
			DayOfWeek:      time.Weekday(model.DayOfWeek),
			StartTime:      start,
			EndTime:        end,
			Recurring:      model.Recurring,
			SpecificDate:   cloneTime(model.SpecificDate),
			EffectiveFrom:  cloneTime(model.EffectiveFrom),
			EffectiveUntil: cloneTime(model.EffectiveUntil),
		},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func toPersistenceRule(rule application.AvailabilityRule) persistence.AvailabilityRule {
	return persistence.AvailabilityRule{
		ID:             rule.ID,
		UserID:         rule.UserID,
		DayOfWeek:      int(rule.DayOfWeek),
		StartTime:      rule.StartTime.String(),
		EndTime:        rule.EndTime.String(),
		Recurring:      rule.Recurring,
		SpecificDate:   cloneTime(rule.SpecificDate),
		EffectiveFrom:  cloneTime(rule.EffectiveFrom),
		EffectiveUntil: cloneTime(rule.EffectiveUntil),
		CreatedAt:      rule.CreatedAt,
		UpdatedAt:      rule.UpdatedAt,
	}
}

func toApplicationUnavailability(model persistence.Unavailability) (application.Unavailability, error) {
	iv, err := interval.New(model.Start, model.End)
	if err != nil {
		return application.Unavailability{}, fmt.Errorf("adapter: unavailability %s: %w", model.ID, err)
	}
	return application.Unavailability{
		Unavailability: availability.Unavailability{
			ID:       model.ID,
			UserID:   model.UserID,
			Interval: iv,
			Reason:   derefString(model.Reason),
		},
		CreatedAt: model.CreatedAt,
	}, nil
}

func toPersistenceUnavailability(u application.Unavailability) persistence.Unavailability {
	return persistence.Unavailability{
		ID:        u.ID,
		UserID:    u.UserID,
		Start:     u.Interval.Start(),
		End:       u.Interval.End(),
		Reason:    optionalString(u.Reason),
		CreatedAt: u.CreatedAt,
	}
}

func toApplicationRehearsal(model persistence.Rehearsal) application.Rehearsal {
	return application.Rehearsal{
		ID:               model.ID,
		BandID:           model.BandID,
		Title:            model.Title,
		Description:      cloneString(model.Description),
		Location:         cloneString(model.Location),
		Start:            model.Start,
		End:              model.End,
		Status:           lifecycle.Status(model.Status),
		CreatedBy:        model.CreatedBy,
		RecurringPattern: model.RecurringPattern,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func toPersistenceRehearsal(r application.Rehearsal) persistence.Rehearsal {
	return persistence.Rehearsal{
		ID:               r.ID,
		BandID:           r.BandID,
		Title:            r.Title,
		Description:      cloneString(r.Description),
		Location:         cloneString(r.Location),
		Start:            r.Start,
		End:              r.End,
		Status:           string(r.Status),
		CreatedBy:        r.CreatedBy,
		RecurringPattern: r.RecurringPattern,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func toApplicationAttendee(model persistence.RehearsalAttendee) lifecycle.Attendee {
	return lifecycle.Attendee{
		RehearsalID:      model.RehearsalID,
		UserID:           model.UserID,
		Response:         lifecycle.Response(model.Response),
		ResponseDate:     cloneTime(model.ResponseDate),
		AttendanceStatus: lifecycle.AttendanceStatus(model.AttendanceStatus),
		LateMinutes:      model.LateMinutes,
		Comment:          derefString(model.Comment),
	}
}

func toPersistenceAttendee(a lifecycle.Attendee, at time.Time) persistence.RehearsalAttendee {
	return persistence.RehearsalAttendee{
		RehearsalID:      a.RehearsalID,
		UserID:           a.UserID,
		Response:         string(a.Response),
		ResponseDate:     cloneTime(a.ResponseDate),
		AttendanceStatus: string(a.AttendanceStatus),
		LateMinutes:      a.LateMinutes,
		Comment:          optionalString(a.Comment),
		UpdatedAt:        at,
	}
}

func toPersistenceFilter(query application.RehearsalQuery) persistence.RehearsalFilter {
	return persistence.RehearsalFilter{
		BandID:      query.BandID,
		Status:      string(query.Status),
		StartsAfter: cloneTime(query.StartsAfter),
		EndsBefore:  cloneTime(query.EndsBefore),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// optionalString stores blank text as NULL.
func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
