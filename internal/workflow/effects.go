package workflow

import "github.com/noah-isme/classroom-workflow-api/internal/models"

func notify(kind, recipientID string, payload map[string]interface{}) models.Effect {
	return models.Effect{
		Kind:        models.EffectKindNotify,
		Type:        kind,
		RecipientID: recipientID,
		Payload:     payload,
	}
}

func audit(action, actorID, resource, resourceID string, payload map[string]interface{}) models.Effect {
	return models.Effect{
		Kind:       models.EffectKindAudit,
		Type:       action,
		ActorID:    actorID,
		Resource:   resource,
		ResourceID: resourceID,
		Payload:    payload,
	}
}
