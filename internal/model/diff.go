package model

// Diff computes the relationships present in the previously published model
// but absent from the current one, by composite key. Those are the entries a
// publish must retract. No mapping-level diffing is done: a changed
// relationship is an upsert of the whole entry, not a partial patch.
func Diff(previous, current *ConfigurationModel) []RelatedEntityConfig {
	if previous == nil {
		return nil
	}

	currentKeys := make(map[string]bool, len(current.RelatedEntities))
	for i := range current.RelatedEntities {
		currentKeys[current.RelatedEntities[i].Key()] = true
	}

	var toRetract []RelatedEntityConfig
	for i := range previous.RelatedEntities {
		if !currentKeys[previous.RelatedEntities[i].Key()] {
			toRetract = append(toRetract, previous.RelatedEntities[i])
		}
	}
	return toRetract
}
