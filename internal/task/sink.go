package task

// TaskSink is the narrow capability cars and ports use to report lifecycle
// events. It replaces a back-reference to the whole scheduler.
type TaskSink interface {
	// PickUpCargo records that the car carrying taskID has loaded its material.
	PickUpCargo(id TaskID)
	// DropOffCargo records that the car carrying taskID has placed its material.
	DropOffCargo(id TaskID)
	// CompleteTask closes the lifecycle of taskID.
	CompleteTask(id TaskID)
	// CompleteMaterial closes the lifecycle of the task moving materialID; ports
	// only know the material they consumed, not the task.
	CompleteMaterial(id MaterialID)
	// CurrentTime is the virtual clock.
	CurrentTime() float64
}

// NopSink discards every event. Useful for driving a car or port standalone.
type NopSink struct{}

func (NopSink) PickUpCargo(TaskID) {}

func (NopSink) DropOffCargo(TaskID) {}

func (NopSink) CompleteTask(TaskID) {}

func (NopSink) CompleteMaterial(MaterialID) {}

func (NopSink) CurrentTime() float64 { return 0 }
