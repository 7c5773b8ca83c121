package simulator

import "time"

type HeatLossParams struct {
	OutdoorTemperature float64
	Coefficient        float64 // conductivity, 0 disables losses
}

func (p HeatLossParams) Validate() error {
	if p.Coefficient < 0 {
		return ErrNegativeHeatLossCoefficient
	}
	return nil
}

type HeatLoss struct {
	params HeatLossParams
}

func NewHeatLoss(params HeatLossParams) (*HeatLoss, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &HeatLoss{params: params}, nil
}

func (h *HeatLoss) Delta(indoor float64, dt time.Duration) float64 {
	return h.params.Coefficient * (h.params.OutdoorTemperature - indoor) * dt.Seconds()
}
