package repository

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/noah-isme/action-ledger/internal/models"
)

type banDetails struct {
	BanApprover string `json:"ban_approver,omitempty"`
	OldReason   string `json:"old_reason,omitempty"`
	Blacklist   bool   `json:"blacklist,omitempty"`
	PcCheckID   string `json:"pc_check_id,omitempty"`
}

type warnDetails struct {
	Acked bool `json:"acked"`
}

type pcCheckDetails struct {
	Caught     bool     `json:"caught"`
	Supervisor string   `json:"supervisor"`
	Approver   string   `json:"approver"`
	Proofs     []string `json:"proofs"`
	BanID      string   `json:"ban_id,omitempty"`
}

func encodeAction(action models.Action) (models.ActionRecord, error) {
	base := action.Base()
	ids, err := json.Marshal(nonNil(base.IDs))
	if err != nil {
		return models.ActionRecord{}, fmt.Errorf("encode ids: %w", err)
	}

	record := models.ActionRecord{
		ID:                  base.ID,
		Type:                string(action.Type()),
		IDs:                 datatypes.JSON(ids),
		PlayerName:          base.PlayerName,
		Reason:              base.Reason,
		Author:              base.Author,
		Timestamp:           base.Timestamp,
		Expiration:          models.Expiration(action),
		RevocationTimestamp: base.Revocation.Timestamp,
		RevocationApprover:  base.Revocation.Approver,
		RevocationRequestor: base.Revocation.Requestor,
		RevocationStatus:    string(base.Revocation.Status),
		RevocationReason:    base.Revocation.Reason,
	}

	var details interface{}
	switch v := action.(type) {
	case *models.Ban:
		hwids, err := json.Marshal(nonNil(v.HWIDs))
		if err != nil {
			return models.ActionRecord{}, fmt.Errorf("encode hwids: %w", err)
		}
		record.HWIDs = datatypes.JSON(hwids)
		details = banDetails{
			BanApprover: v.BanApprover,
			OldReason:   v.OldReason,
			Blacklist:   v.Blacklist,
			PcCheckID:   v.PcCheckID,
		}
	case *models.Warn:
		details = warnDetails{Acked: v.Acked}
	case *models.PcCheck:
		details = pcCheckDetails{
			Caught:     v.Caught,
			Supervisor: v.Supervisor,
			Approver:   v.Approver,
			Proofs:     nonNil(v.Proofs),
			BanID:      v.BanID,
		}
	}

	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return models.ActionRecord{}, fmt.Errorf("encode details: %w", err)
		}
		record.Details = datatypes.JSON(raw)
	}

	return record, nil
}

func decodeAction(record models.ActionRecord) (models.Action, error) {
	action := models.NewAction(models.ActionType(record.Type))
	if action == nil {
		return nil, fmt.Errorf("action %s has unknown type %q", record.ID, record.Type)
	}

	base := action.Base()
	base.ID = record.ID
	base.PlayerName = record.PlayerName
	base.Reason = record.Reason
	base.Author = record.Author
	base.Timestamp = record.Timestamp
	base.Revocation = models.Revocation{
		Timestamp: record.RevocationTimestamp,
		Approver:  record.RevocationApprover,
		Requestor: record.RevocationRequestor,
		Status:    models.RevocationStatus(record.RevocationStatus),
		Reason:    record.RevocationReason,
	}
	if err := unmarshalJSON(record.IDs, &base.IDs); err != nil {
		return nil, fmt.Errorf("decode ids of %s: %w", record.ID, err)
	}

	switch v := action.(type) {
	case *models.Ban:
		v.Expiration = record.Expiration
		if err := unmarshalJSON(record.HWIDs, &v.HWIDs); err != nil {
			return nil, fmt.Errorf("decode hwids of %s: %w", record.ID, err)
		}
		var details banDetails
		if err := unmarshalJSON(record.Details, &details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", record.ID, err)
		}
		v.BanApprover = details.BanApprover
		v.OldReason = details.OldReason
		v.Blacklist = details.Blacklist
		v.PcCheckID = details.PcCheckID
	case *models.Mute:
		v.Expiration = record.Expiration
	case *models.Warn:
		var details warnDetails
		if err := unmarshalJSON(record.Details, &details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", record.ID, err)
		}
		v.Acked = details.Acked
	case *models.PcCheck:
		var details pcCheckDetails
		if err := unmarshalJSON(record.Details, &details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", record.ID, err)
		}
		v.Caught = details.Caught
		v.Supervisor = details.Supervisor
		v.Approver = details.Approver
		v.Proofs = nonNil(details.Proofs)
		v.BanID = details.BanID
	}

	return action, nil
}

func unmarshalJSON(raw datatypes.JSON, target interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
