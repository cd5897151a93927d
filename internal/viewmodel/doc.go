// Package viewmodel turns repository flows and user commands into the single
// current state each screen renders.
//
// Every view model publishes its state through one flow.StateView and exposes
// a fixed set of command methods. States are closed sets of variants; consumers
// switch on the concrete type:
//
//	switch s := home.UIState().Value().(type) {
//	case viewmodel.HomeLoading:
//	case viewmodel.HomeSuccess:
//		render(s.UnfinishedTasks, s.FinishedTasks)
//	}
//
// Commands that persist run asynchronously on the view model's scope. Close
// cancels pending work and stops collecting upstream flows; a closed view
// model keeps its last state and ignores further persistence commands.
package viewmodel
