package handlers

import (
	"courierconnect/internal/domain"
	"courierconnect/internal/repository"
	"courierconnect/internal/service/delivery"
)

func (p partyDTO) toModel() domain.Party {
	out := domain.Party{
		Name:    p.Name,
		Phone:   p.Phone,
		Address: p.Address,
	}
	if p.Lat != nil && p.Lng != nil {
		out.Location = &domain.Location{Lat: *p.Lat, Lng: *p.Lng}
	}
	return out
}

func (r createDeliveryRequest) toModel() delivery.CreateRequest {
	return delivery.CreateRequest{
		Sender:             r.Sender.toModel(),
		Receiver:           r.Receiver.toModel(),
		PackageType:        r.PackageType,
		PackageSize:        domain.PackageSize(r.PackageSize),
		PackageDescription: r.PackageDescription,
		WeightKg:           r.WeightKg,
		Urgency:            domain.Urgency(r.Urgency),
		ScheduledPickupAt:  r.ScheduledPickupAt,
		DistanceKm:         r.DistanceKm,
	}
}

func partyToResponse(p domain.Party) partyDTO {
	out := partyDTO{
		Name:    p.Name,
		Phone:   p.Phone,
		Address: p.Address,
	}
	if p.Location != nil {
		out.Lat = &p.Location.Lat
		out.Lng = &p.Location.Lng
	}
	return out
}

func priceToResponse(p domain.PriceBreakdown) priceDTO {
	return priceDTO{
		Base:              p.Base,
		Distance:          p.Distance,
		UrgencySurcharge:  p.UrgencySurcharge,
		SizeSurcharge:     p.SizeSurcharge,
		ScheduleDiscount:  p.ScheduleDiscount,
		MinimumAdjustment: p.MinimumAdjustment,
		MinimumApplied:    p.MinimumApplied,
		Total:             p.Total,
		CourierEarnings:   p.CourierEarnings,
		PlatformFee:       p.PlatformFee,
	}
}

func deliveryToResponse(d *domain.Delivery) deliveryDTO {
	timeline := make([]timelineEntryDTO, 0, len(d.Timeline))
	for _, e := range d.Timeline {
		timeline = append(timeline, timelineEntryDTO{
			Status:  string(e.Status),
			Message: e.Message,
			At:      e.At,
		})
	}

	return deliveryDTO{
		TrackingID:          d.TrackingID,
		Status:              string(d.Status),
		Sender:              partyToResponse(d.Sender),
		Receiver:            partyToResponse(d.Receiver),
		PackageType:         d.PackageType,
		PackageSize:         string(d.PackageSize),
		PackageDescription:  d.PackageDescription,
		WeightKg:            d.WeightKg,
		Urgency:             string(d.Urgency),
		ScheduledPickupAt:   d.ScheduledPickupAt,
		DistanceKm:          d.DistanceKm,
		DurationMinutes:     d.DurationMinutes,
		DistanceEstimated:   d.DistanceEstimated,
		Price:               priceToResponse(d.Price),
		CourierID:           d.CourierID,
		PaymentStatus:       string(d.PaymentStatus),
		CreatedAt:           d.CreatedAt,
		AcceptedAt:          d.AcceptedAt,
		CompletedAt:         d.CompletedAt,
		EstimatedDeliveryAt: d.EstimatedDeliveryAt,
		Timeline:            timeline,
	}
}

func deliveriesToResponse(list []domain.Delivery) deliveriesResponse {
	out := deliveriesResponse{Deliveries: make([]deliveryDTO, 0, len(list))}
	for i := range list {
		out.Deliveries = append(out.Deliveries, deliveryToResponse(&list[i]))
	}
	return out
}

func courierToResponse(c domain.Courier) courierDTO {
	return courierDTO{
		ID:               c.ID,
		Name:             c.Name,
		Phone:            c.Phone,
		PayoutState:      string(c.Payout.State),
		ActiveDeliveries: c.ActiveDeliveries,
		TotalDeliveries:  c.TotalDeliveries,
		Earnings:         c.Earnings,
	}
}

func earningsToResponse(s *repository.EarningsSummary) earningsResponse {
	return earningsResponse{
		Courier:        courierToResponse(s.Courier),
		DeliveredCount: s.DeliveredCount,
		InFlightCount:  s.InFlightCount,
	}
}
