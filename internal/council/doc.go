// Package council turns independent model proposals into a single routing
// decision.
//
// A Selector inspects a prompt and proposes one model as a Vote. A Council
// owns an ordered list of selectors, collects their votes and reduces them to
// a Decision under one aggregation policy:
//
//   - cascade: ask selectors in order, stop at the first confident vote
//   - majority: ask all selectors concurrently, the most voted model wins
//   - weighted: like majority, but each selector's vote carries a weight
//   - unanimous: a model wins only if every configured selector chose it
//   - random: draw uniformly from the votes that were cast
//
// Failed selectors never abort a decision; they are logged and excluded. A
// council that collects no vote at all returns ErrNoValidVotes.
package council
